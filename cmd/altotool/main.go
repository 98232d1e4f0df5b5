package main

import (
	"fmt"
	"os"
	"path"

	"github.com/sbelectronics/altotool/pkg/altofs"
	"github.com/spf13/cobra"
)

var (
	quiet        bool
	summary      bool
	extractPath  string
	outputPath   string
	numCylinders int
	numHeads     int
	numSectors   int

	rootCmd = &cobra.Command{
		Use:   "altotool <image>",
		Short: "Read, check, and extract files from Xerox Alto disk images",
		Args:  cobra.ExactArgs(1),
		Run:   RunRoot,
	}

	chkdskCmd = &cobra.Command{
		Use:   "chkdsk <image>",
		Short: "Run the integrity checker over an image",
		Args:  cobra.ExactArgs(1),
		Run:   RunChkdsk,
	}

	dirCmd = &cobra.Command{
		Use:   "dir <image> [path]",
		Short: "List directory contents",
		Args:  cobra.RangeArgs(1, 2),
		Run:   RunDir,
	}

	findCmd = &cobra.Command{
		Use:   "find <image> <path>",
		Short: "Resolve a pathname and print its leader VDA",
		Args:  cobra.ExactArgs(2),
		Run:   RunFind,
	}

	infoCmd = &cobra.Command{
		Use:   "info <image> <path>",
		Short: "Print leader metadata for a file",
		Args:  cobra.ExactArgs(2),
		Run:   RunInfo,
	}

	extractCmd = &cobra.Command{
		Use:   "extract <image> <path>",
		Short: "Extract a file to the host filesystem",
		Args:  cobra.ExactArgs(2),
		Run:   RunExtract,
	}

	replaceCmd = &cobra.Command{
		Use:   "replace <image> <path> <input>",
		Short: "Overwrite a file's content from a host file",
		Args:  cobra.ExactArgs(3),
		Run:   RunReplace,
	}
)

func geometry() altofs.Geometry {
	return altofs.Geometry{Cylinders: numCylinders, Heads: numHeads, Sectors: numSectors}
}

func loadImage(path string) *altofs.FS {
	fs, err := altofs.OpenImage(path, geometry())
	FatalErrCheck(err)
	return fs
}

// RunRoot implements the literal minimum contract of the external
// interface: a bare image path, -s to print a summary, -e to extract
// a file by its own name (spec section 6).
func RunRoot(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])

	if summary {
		printSummary(fs)
	}

	if extractPath != "" {
		fe, err := fs.Find(extractPath)
		FatalErrCheck(err)
		info, err := fs.FileInfo(fe)
		FatalErrCheck(err)
		name := info.Filename
		if name == "" {
			name = path.Base(extractPath)
		}
		err = fs.ExtractFile(fe, name)
		FatalErrCheck(err)
		Infof("Extracted %s\n", name)
	}

	if !summary && extractPath == "" {
		errs := fs.Check()
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			os.Exit(1)
		}
		Infof("Image loaded, %d pages, no integrity errors found.\n", fs.Store.Len())
	}
}

func printSummary(fs *altofs.FS) {
	free := 0
	for i := 0; i < fs.Store.Len(); i++ {
		if fs.Store.Pages[i].Label.IsFree() {
			free++
		}
	}
	fmt.Printf("Geometry: %+v (%d pages)\n", fs.Store.Geometry, fs.Store.Len())
	fmt.Printf("Free pages: %d\n", free)
	fmt.Println("Root directory:")

	root, err := fs.FileEntry(altofs.RootLeaderVDA)
	FatalErrCheck(err)
	err = fs.ScanDirectory(root, func(de altofs.DirectoryEntry) (altofs.ScanResult, error) {
		kind := "file"
		if de.Entry.SerialNumber.IsDirectory() {
			kind = "dir"
		}
		fmt.Printf("  %-6s %s\n", kind, de.Filename)
		return altofs.ScanContinue, nil
	})
	FatalErrCheck(err)
}

func RunChkdsk(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])
	errs := fs.Check()
	if len(errs) == 0 {
		Infof("Disk check completed successfully, no errors found.\n")
		return
	}
	for _, e := range errs {
		fmt.Println(e)
	}
	fmt.Printf("Disk check completed with %d errors.\n", len(errs))
	os.Exit(1)
}

func RunDir(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])

	dirEntry, err := fs.FileEntry(altofs.RootLeaderVDA)
	FatalErrCheck(err)
	if len(args) == 2 {
		dirEntry, err = fs.Find(args[1])
		FatalErrCheck(err)
	}

	err = fs.ScanDirectory(dirEntry, func(de altofs.DirectoryEntry) (altofs.ScanResult, error) {
		kind := "file"
		if de.Entry.SerialNumber.IsDirectory() {
			kind = "dir"
		}
		fmt.Printf("%-6s %s\n", kind, de.Filename)
		return altofs.ScanContinue, nil
	})
	FatalErrCheck(err)
}

func RunFind(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])
	fe, err := fs.Find(args[1])
	FatalErrCheck(err)
	fmt.Printf("leader_vda=%d serial=(%#04x,%#04x) version=%d\n",
		fe.LeaderVDA, fe.SerialNumber.Word1, fe.SerialNumber.Word2, fe.Version)
}

func RunInfo(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])
	fe, err := fs.Find(args[1])
	FatalErrCheck(err)
	info, err := fs.FileInfo(fe)
	FatalErrCheck(err)
	length, err := fs.FileLength(fe)
	FatalErrCheck(err)

	fmt.Printf("Filename:  %s\n", info.Filename)
	fmt.Printf("Length:    %d bytes\n", length)
	fmt.Printf("Created:   %s\n", info.Created)
	fmt.Printf("Written:   %s\n", info.Written)
	fmt.Printf("Read:      %s\n", info.Read)
}

func RunExtract(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])
	fe, err := fs.Find(args[1])
	FatalErrCheck(err)

	dest := outputPath
	if dest == "" {
		info, err := fs.FileInfo(fe)
		FatalErrCheck(err)
		dest = info.Filename
		if dest == "" {
			dest = path.Base(args[1])
		}
	}

	err = fs.ExtractFile(fe, dest)
	FatalErrCheck(err)
	Infof("Extracted %s\n", dest)
}

func RunReplace(cmd *cobra.Command, args []string) {
	fs := loadImage(args[0])
	fe, err := fs.Find(args[1])
	FatalErrCheck(err)

	err = fs.ReplaceFile(fe, args[2])
	FatalErrCheck(err)

	err = fs.Save(args[0])
	FatalErrCheck(err)
	Infof("Replaced %s from %s\n", args[1], args[2])
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide nonessential output")
	rootCmd.PersistentFlags().IntVar(&numCylinders, "cylinders", altofs.DefaultGeometry.Cylinders, "Number of cylinders")
	rootCmd.PersistentFlags().IntVar(&numHeads, "heads", altofs.DefaultGeometry.Heads, "Number of heads")
	rootCmd.PersistentFlags().IntVar(&numSectors, "sectors", altofs.DefaultGeometry.Sectors, "Number of sectors")

	rootCmd.Flags().BoolVarP(&summary, "summary", "s", false, "Print filesystem summary")
	rootCmd.Flags().StringVarP(&extractPath, "extract", "e", "", "Extract the named file using its own name")

	extractCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output filename (defaults to the file's own name)")

	rootCmd.AddCommand(chkdskCmd)
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(replaceCmd)

	err := rootCmd.Execute()
	FatalErrCheck(err)
}
