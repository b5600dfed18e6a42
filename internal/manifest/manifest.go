// Package manifest describes the script and stylesheet bundles of the application.
//
// The manifest is produced ahead of time by scanning the build blocks of the HTML entry point
// and is then read by the build, which never infers bundles from markup itself.
package manifest

import (
	"bytes"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrUnknownBundle   = errors.New("bundle not declared in manifest")
)

// BundleType is the kind of assets a bundle concatenates.
type BundleType string

const (
	JS  BundleType = "js"
	CSS BundleType = "css"
)

// Bundle is a list of assets concatenated into Dest.
// Dest and Members are slash separated and relative to the HTML document.
type Bundle struct {
	Type BundleType `yaml:"type"`
	Dest string     `yaml:"dest"`
	// SearchPaths overrides the directories members are resolved against.
	SearchPaths []string `yaml:"search_paths,omitempty"`
	Members     []string `yaml:"members"`
}

// Manifest lists the bundles of an HTML document.
type Manifest struct {
	Source  string   `yaml:"source"`
	Bundles []Bundle `yaml:"bundles"`
}

// Validate checks every bundle has a known type, a destination and members,
// and that destinations are unique.
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Bundles))

	for i, b := range m.Bundles {
		if b.Type != JS && b.Type != CSS {
			return errors.Wrapf(ErrInvalidManifest, "bundle %d: unknown type %q", i, b.Type)
		}

		if b.Dest == "" {
			return errors.Wrapf(ErrInvalidManifest, "bundle %d: empty dest", i)
		}

		if path.IsAbs(b.Dest) || path.Clean(b.Dest) != b.Dest || b.Dest == ".." || hasParent(b.Dest) {
			return errors.Wrapf(ErrInvalidManifest, "bundle %s: dest must be a clean relative path", b.Dest)
		}

		if len(b.Members) == 0 {
			return errors.Wrapf(ErrInvalidManifest, "bundle %s: no members", b.Dest)
		}

		if _, ok := seen[b.Dest]; ok {
			return errors.Wrapf(ErrInvalidManifest, "bundle %s declared twice", b.Dest)
		}

		seen[b.Dest] = struct{}{}
	}

	return nil
}

func hasParent(p string) bool {
	return len(p) >= 3 && p[:3] == "../"
}

// Find returns the bundle written to dest.
func (m *Manifest) Find(dest string) (Bundle, error) {
	for _, b := range m.Bundles {
		if b.Dest == dest {
			return b, nil
		}
	}

	return Bundle{}, errors.Wrap(ErrUnknownBundle, dest)
}

// ByType returns the bundles of type t, in declaration order.
func (m *Manifest) ByType(t BundleType) []Bundle {
	var res []Bundle

	for _, b := range m.Bundles {
		if b.Type == t {
			res = append(res, b)
		}
	}

	return res
}

// Decode reads and validates a YAML manifest.
func Decode(r io.Reader) (*Manifest, error) {
	m := &Manifest{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(m)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "unable to decode manifest")
	}

	err = m.Validate()
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Load reads the manifest file at filename.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read manifest %s", filename)
	}

	m, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load manifest %s", filename)
	}

	return m, nil
}

// Encode writes m as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(m)
	if err != nil {
		return errors.Wrap(err, "unable to encode manifest")
	}

	return errors.Wrap(enc.Close(), "unable to flush manifest")
}

// Save writes m to filename.
func (m *Manifest) Save(filename string) error {
	buf := &bytes.Buffer{}

	err := m.Encode(buf)
	if err != nil {
		return err
	}

	err = os.WriteFile(filename, buf.Bytes(), 0o644) //nolint:gosec
	if err != nil {
		return errors.Wrapf(err, "unable to write manifest %s", filename)
	}

	return nil
}
