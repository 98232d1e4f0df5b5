package confidence

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"os"
	"os/exec"
	"path"
	"testing"

	"github.com/sbelectronics/altotool/pkg/altofs"
	"github.com/stretchr/testify/suite"
)

const (
	ALTOTOOL  = "../build/_output/altotool"
	TESTIMAGE = "../test.work"
)

var geometry = altofs.Geometry{Cylinders: 4, Heads: 1, Sectors: 4}

// fixtureFile is one file baked into the golden image by buildGoldenImage.
type fixtureFile struct {
	leaderVDA altofs.VDA
	dataVDA   altofs.VDA
	name      string
	content   []byte
}

var fixtureFiles = []fixtureFile{
	{leaderVDA: 2, dataVDA: 3, name: "hello.txt", content: []byte("hello, alto\n")},
	{leaderVDA: 4, dataVDA: 5, name: "world.txt", content: []byte("goodbye, alto\n")},
}

// buildGoldenImage assembles a small, internally consistent Alto disk
// image directly through the exported altofs API: a root directory
// (leader at RootLeaderVDA) listing two regular files, each a single
// data page.
func buildGoldenImage(path string) error {
	store, err := altofs.NewPageStore(geometry)
	if err != nil {
		return err
	}
	for i := range store.Pages {
		rda, err := store.RDA(altofs.VDA(i))
		if err != nil {
			return err
		}
		store.Pages[i].Header = altofs.Header{Zero: 0, RDA: rda}
		store.Pages[i].Label.Version = altofs.VersionFree
	}

	setPage := func(vda altofs.VDA, label altofs.Label) {
		rda, _ := store.RDA(vda)
		store.Pages[vda].Header = altofs.Header{Zero: 0, RDA: rda}
		store.Pages[vda].Label = label
	}

	rootSN := altofs.SerialNumber{Word1: altofs.SNDirectory, Word2: 1}
	setPage(altofs.RootLeaderVDA, altofs.Label{NBytes: altofs.PageDataSize, Version: 1, SerialNumber: rootSN})
	store.Pages[altofs.RootLeaderVDA].Data[12] = byte(len("root"))
	copy(store.Pages[altofs.RootLeaderVDA].Data[13:], "root")

	var dirData []byte
	for _, f := range fixtureFiles {
		fileSN := altofs.SerialNumber{Word2: uint16(f.leaderVDA)}

		setPage(f.leaderVDA, altofs.Label{NBytes: altofs.PageDataSize, Version: 1, SerialNumber: fileSN})
		store.Pages[f.leaderVDA].Data[12] = byte(len(f.name))
		copy(store.Pages[f.leaderVDA].Data[13:], f.name)

		leaderRDAVal, _ := store.RDA(f.leaderVDA)
		dataRDA, _ := store.RDA(f.dataVDA)
		store.Pages[f.leaderVDA].Label.NextRDA = dataRDA
		setPage(f.dataVDA, altofs.Label{
			PrevRDA:        leaderRDAVal,
			NBytes:         uint16(len(f.content)),
			FilePageNumber: 1,
			Version:        1,
			SerialNumber:   fileSN,
		})
		copy(store.Pages[f.dataVDA].Data[:], f.content)

		dirData = append(dirData, encodeDirEntry(fileSN, 1, f.leaderVDA, f.name)...)
	}

	rootDataVDA := altofs.VDA(10)
	rootDataRDA, _ := store.RDA(rootDataVDA)
	rootLeaderRDA, _ := store.RDA(altofs.RootLeaderVDA)
	store.Pages[altofs.RootLeaderVDA].Label.NextRDA = rootDataRDA
	setPage(rootDataVDA, altofs.Label{
		PrevRDA:        rootLeaderRDA,
		NBytes:         uint16(len(dirData)),
		FilePageNumber: 1,
		Version:        1,
		SerialNumber:   rootSN,
	})
	copy(store.Pages[rootDataVDA].Data[:], dirData)

	return store.SaveImage(path)
}

func encodeDirEntry(sn altofs.SerialNumber, version uint16, leaderVDA altofs.VDA, name string) []byte {
	nameBytes := 1 + len(name)
	if nameBytes%2 != 0 {
		nameBytes++
	}
	bodyLen := 10 + nameBytes
	totalLen := 2 + bodyLen
	lengthWords := totalLen / 2

	rec := make([]byte, totalLen)
	header := uint16(lengthWords) | (1 << 10)
	putBE16(rec[0:2], header)
	putBE16(rec[2:4], sn.Word1)
	putBE16(rec[4:6], sn.Word2)
	putBE16(rec[6:8], version)
	putBE16(rec[8:10], 0)
	putBE16(rec[10:12], uint16(leaderVDA))
	rec[12] = byte(len(name))
	copy(rec[13:], name)
	return rec
}

func putBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

type ConfidenceSuite struct {
	suite.Suite
}

func (s *ConfidenceSuite) SetupTest() {
	err := os.Remove(TESTIMAGE)
	if err != nil && !os.IsNotExist(err) {
		s.FailNow("Failed to remove TESTIMAGE", err)
	}
	s.Require().NoError(buildGoldenImage(TESTIMAGE))
}

func (s *ConfidenceSuite) run(args ...string) (string, string, error) {
	fullArgs := append([]string{"--cylinders", "4", "--heads", "1", "--sectors", "4"}, args...)
	cmd := exec.Command(ALTOTOOL, fullArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func (s *ConfidenceSuite) ShowIfError(err error, out, errOut string) {
	if err != nil {
		s.T().Logf("\nOutput: %s\n", out)
		s.T().Logf("Error Output: %s\n", errOut)
	}
}

func (s *ConfidenceSuite) TestChkdsk() {
	out, errOut, err := s.run("chkdsk", TESTIMAGE)
	s.NoError(err)
	s.ShowIfError(err, out, errOut)
	s.Contains(out, "successfully")
}

func (s *ConfidenceSuite) TestDir() {
	out, errOut, err := s.run("dir", TESTIMAGE)
	s.NoError(err)
	s.ShowIfError(err, out, errOut)
	s.Contains(out, "hello.txt")
	s.Contains(out, "world.txt")
}

func (s *ConfidenceSuite) TestFind() {
	out, errOut, err := s.run("find", TESTIMAGE, "hello.txt")
	s.NoError(err)
	s.ShowIfError(err, out, errOut)
	s.Contains(out, "leader_vda=2")
}

func (s *ConfidenceSuite) TestExtract() {
	tempDir, err := os.MkdirTemp("", "confidence-test")
	s.Require().NoError(err)
	defer os.RemoveAll(tempDir)

	dest := path.Join(tempDir, "hello.txt")
	out, errOut, err := s.run("extract", TESTIMAGE, "hello.txt", "-o", dest)
	s.NoError(err)
	s.ShowIfError(err, out, errOut)

	content, err := os.ReadFile(dest)
	s.Require().NoError(err)
	hash := fmt.Sprintf("%x", sha1.Sum(content))
	s.Equal(fmt.Sprintf("%x", sha1.Sum([]byte("hello, alto\n"))), hash)
}

func (s *ConfidenceSuite) TestReplaceThenChkdsk() {
	tempDir, err := os.MkdirTemp("", "confidence-test")
	s.Require().NoError(err)
	defer os.RemoveAll(tempDir)

	input := path.Join(tempDir, "in.txt")
	s.Require().NoError(os.WriteFile(input, []byte("replaced content\n"), 0644))

	out, errOut, err := s.run("replace", TESTIMAGE, "hello.txt", input)
	s.NoError(err)
	s.ShowIfError(err, out, errOut)

	out, errOut, err = s.run("chkdsk", TESTIMAGE)
	s.NoError(err)
	s.ShowIfError(err, out, errOut)
	s.Contains(out, "successfully")

	dest := path.Join(tempDir, "out.txt")
	out, errOut, err = s.run("extract", TESTIMAGE, "hello.txt", "-o", dest)
	s.NoError(err)
	s.ShowIfError(err, out, errOut)

	content, err := os.ReadFile(dest)
	s.Require().NoError(err)
	s.Equal("replaced content\n", string(content))
}

func TestConfidenceSuite(t *testing.T) {
	suite.Run(t, new(ConfidenceSuite))
}
