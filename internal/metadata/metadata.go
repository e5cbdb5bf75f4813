// Package metadata loads the source-of-truth metadata documents that items
// are compared against.
package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Document is one source metadata document.
type Document struct {
	// Path is the file the document was read from.
	Path string
	// XML is the document text with surrounding whitespace removed.
	XML string
	// Keywords are the theme keywords in document order.
	Keywords []string
}

// Source resolves the metadata document for a reference source name.
type Source interface {
	// Lookup returns nil without error when no document exists.
	Lookup(sourceName string) (*Document, error)
	// Load reads the document at path.
	Load(path string) (*Document, error)
}

// DirSource reads documents named {sourceName}.xml from a directory.
type DirSource struct {
	Dir string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// PathFor returns the document path for sourceName.
func (s *DirSource) PathFor(sourceName string) string {
	return filepath.Join(s.Dir, sourceName+".xml")
}

// Lookup implements Source.
func (s *DirSource) Lookup(sourceName string) (*Document, error) {
	if s.Dir == "" || sourceName == "" {
		return nil, nil
	}
	path := s.PathFor(sourceName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return s.Load(path)
}

// Load implements Source.
func (s *DirSource) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metadata: read %s", path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "metadata: parse %s", path)
	}
	doc.Path = path
	return doc, nil
}

// Parse builds a Document from raw XML.
func Parse(data []byte) (*Document, error) {
	keywords, err := keywords(data)
	if err != nil {
		return nil, err
	}
	return &Document{
		XML:      strings.TrimSpace(string(data)),
		Keywords: keywords,
	}, nil
}

type searchKeys struct {
	Keywords []string `xml:"keyword"`
}

// keywords collects dataIdInfo/searchKeys/keyword values.
func keywords(data []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "metadata: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var out []string
	var path []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "metadata: read token")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "searchKeys" && len(path) > 0 && path[len(path)-1] == "dataIdInfo" {
				var keys searchKeys
				if err := decoder.DecodeElement(&keys, &t); err != nil {
					return nil, eris.Wrap(err, "metadata: decode searchKeys")
				}
				for _, k := range keys.Keywords {
					if k = strings.TrimSpace(k); k != "" {
						out = append(out, k)
					}
				}
				continue
			}
			path = append(path, t.Name.Local)
		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}
}
