package manifest

import (
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

var (
	buildRe    = regexp.MustCompile(`^\s*build:(\w+)(?:\(([^)]*)\))?\s+(\S+)\s*$`)
	endBuildRe = regexp.MustCompile(`^\s*endbuild\s*$`)
)

// blockFunc receives a complete build block and returns the markup replacing it.
type blockFunc func(b Bundle) (string, error)

// walk tokenizes r and calls onBlock for every build block. Every token outside of a block
// is passed to onRaw as is.
func walk(r io.Reader, onRaw func(raw []byte) error, onBlock blockFunc) error {
	tokenizer := html.NewTokenizer(r)

	var current *Bundle

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if errors.Is(tokenizer.Err(), io.EOF) {
				break
			}

			return errors.Wrap(tokenizer.Err(), "unable to tokenize html")
		}

		// Token may reuse the buffer behind Raw.
		raw := append([]byte(nil), tokenizer.Raw()...)
		token := tokenizer.Token()

		if tt == html.CommentToken {
			if m := buildRe.FindStringSubmatch(token.Data); m != nil {
				if current != nil {
					return errors.Wrapf(ErrInvalidManifest, "build block %s opened inside %s", m[3], current.Dest)
				}

				current = &Bundle{Type: BundleType(m[1]), Dest: strings.TrimPrefix(m[3], "/")}
				if m[2] != "" {
					current.SearchPaths = splitList(m[2])
				}

				continue
			}

			if endBuildRe.MatchString(token.Data) {
				if current == nil {
					return errors.Wrap(ErrInvalidManifest, "endbuild without build block")
				}

				replacement, err := onBlock(*current)
				if err != nil {
					return err
				}

				if onRaw != nil {
					err = onRaw([]byte(replacement))
					if err != nil {
						return err
					}
				}

				current = nil

				continue
			}
		}

		if current != nil {
			if ref, ok := reference(token, current.Type); ok {
				current.Members = append(current.Members, strings.TrimPrefix(ref, "/"))
			}

			continue
		}

		if onRaw != nil {
			err := onRaw(raw)
			if err != nil {
				return err
			}
		}
	}

	if current != nil {
		return errors.Wrapf(ErrInvalidManifest, "build block %s is never closed", current.Dest)
	}

	return nil
}

func splitList(s string) []string {
	var res []string

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			res = append(res, part)
		}
	}

	return res
}

// reference returns the asset a script or stylesheet tag points to.
func reference(token html.Token, t BundleType) (string, bool) {
	if token.Type != html.StartTagToken && token.Type != html.SelfClosingTagToken {
		return "", false
	}

	attrs := make(map[string]string, len(token.Attr))
	for _, attr := range token.Attr {
		attrs[attr.Key] = attr.Val
	}

	switch {
	case t == JS && token.Data == "script" && attrs["src"] != "":
		return attrs["src"], true
	case t == CSS && token.Data == "link" && strings.EqualFold(attrs["rel"], "stylesheet") && attrs["href"] != "":
		return attrs["href"], true
	default:
		return "", false
	}
}

// Scan reads the build blocks of an HTML document:
//
//	<!-- build:js scripts/app.js -->
//	<script src="scripts/vendor/jquery.js"></script>
//	<!-- endbuild -->
//
// An optional list of search paths may follow the type: build:js(.tmp,app) scripts/app.js.
func Scan(source string, r io.Reader) (*Manifest, error) {
	m := &Manifest{Source: source}

	err := walk(r, nil, func(b Bundle) (string, error) {
		m.Bundles = append(m.Bundles, b)

		return "", nil
	})
	if err != nil {
		return nil, err
	}

	err = m.Validate()
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Rewrite copies the HTML document from r to w, replacing every build block with the markup
// returned by replace. Blocks are checked against m: a block m does not declare, or whose
// members differ, is an error.
func Rewrite(m *Manifest, r io.Reader, w io.Writer, replace func(b Bundle) string) error {
	return walk(r, func(raw []byte) error {
		_, err := w.Write(raw)

		return errors.Wrap(err, "unable to write html")
	}, func(b Bundle) (string, error) {
		declared, err := m.Find(b.Dest)
		if err != nil {
			return "", err
		}

		if declared.Type != b.Type || !slices.Equal(declared.Members, b.Members) {
			return "", errors.Wrapf(ErrInvalidManifest, "bundle %s is out of date, regenerate the manifest", b.Dest)
		}

		return replace(declared), nil
	})
}

// Tag returns the markup loading the bundle from src.
func Tag(t BundleType, src string) string {
	if t == CSS {
		return `<link rel="stylesheet" href="` + html.EscapeString(src) + `">`
	}

	return `<script src="` + html.EscapeString(src) + `"></script>`
}
