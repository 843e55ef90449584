package descriptor

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Version is mixed into the digest so a generator change invalidates
// previously generated code.
const Version = "2"

// Digest identifies the inputs of one generation run: the resolved config
// and the raw imports descriptor.
func Digest(cfg *Config, imports []byte) string {
	h := sha256.New()
	h.Write([]byte("membasegen/" + Version + "\x00"))
	raw, _ := json.Marshal(cfg)
	h.Write(raw)
	h.Write([]byte{0})
	h.Write(imports)
	return hex.EncodeToString(h.Sum(nil))
}

// ReadDigest returns the digest recorded in a generated file, or "" if the
// file is not generated code.
func ReadDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() || scanner.Text() != GeneratedHeader {
		return "", scanner.Err()
	}
	if scanner.Scan() {
		if digest, ok := strings.CutPrefix(scanner.Text(), DigestPrefix); ok {
			return digest, nil
		}
	}
	return "", scanner.Err()
}

type Generator struct {
	Dir   string
	Force bool
}

type Result struct {
	Digest  string
	Written []string
	Removed []string
	Skipped bool
}

func (g *Generator) files(u *Unit) (want, stale []string) {
	want = []string{ConfigFile}
	for file, on := range map[string]bool{
		OffsetsFile:    u.Offsets != nil,
		SignaturesFile: u.Signatures != nil,
		FunctionsFile:  u.Functions != nil,
	} {
		if on {
			want = append(want, file)
		} else {
			stale = append(stale, file)
		}
	}
	slices.Sort(want)
	slices.Sort(stale)
	return want, stale
}

// Stale lists the files in Dir that do not match digest: missing or out of
// date outputs, and generated files for tables that are now disabled.
func (g *Generator) Stale(u *Unit, digest string) ([]string, error) {
	want, stale := g.files(u)
	var out []string
	for _, file := range want {
		got, err := ReadDigest(filepath.Join(g.Dir, file))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		} else if got != digest {
			out = append(out, file)
		}
	}
	for _, file := range stale {
		got, err := ReadDigest(filepath.Join(g.Dir, file))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		} else if got != "" {
			out = append(out, file)
		}
	}
	return out, nil
}

// Generate renders u into Dir. Nothing is written when every output already
// carries digest, unless Force is set.
func (g *Generator) Generate(u *Unit, digest string) (*Result, error) {
	res := &Result{Digest: digest}
	if !g.Force {
		stale, err := g.Stale(u, digest)
		if err != nil {
			return nil, err
		} else if len(stale) == 0 {
			res.Skipped = true
			log.WithField("digest", digest).Debug("generated code up to date")
			return res, nil
		}
	}
	files, err := Render(u, digest)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(g.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "unable to create output directory")
	}
	want, stale := g.files(u)
	for _, file := range want {
		path := filepath.Join(g.Dir, file)
		if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, files[file]) {
			continue
		}
		if err = os.WriteFile(path, files[file], 0o644); err != nil {
			return nil, errors.Wrapf(err, "unable to write %s", file)
		}
		res.Written = append(res.Written, path)
	}
	for _, file := range stale {
		path := filepath.Join(g.Dir, file)
		if got, _ := ReadDigest(path); got == "" {
			continue
		}
		if err = os.Remove(path); err != nil {
			return nil, errors.Wrapf(err, "unable to remove %s", file)
		}
		res.Removed = append(res.Removed, path)
	}
	return res, nil
}
