package xls

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/yamitzky/xlbiff-go/cfb"
)

// FileFormatDescriptions provides descriptions of the file types InspectFormat
// can report.
var FileFormatDescriptions = map[string]string{
	"xls":  "Excel xls",
	"xlsb": "Excel 2007 xlsb file",
	"xlsx": "Excel xlsx file",
	"ods":  "Openoffice.org ODS file",
	"zip":  "Unknown ZIP file",
	"":     "Unknown file type",
}

var zipSignature = []byte("PK\x03\x04")

const peekSize = 8

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return strings.Replace(path, "~", home, 1), nil
}

// InspectFormat returns the type of the file at path, or of content when it
// is not nil. The result is empty when the format is unknown and can always
// be looked up in FileFormatDescriptions.
func InspectFormat(path string, content []byte) (string, error) {
	var peek []byte
	if content != nil {
		peek = content[:min(len(content), peekSize)]
	} else {
		p, err := expandHome(path)
		if err != nil {
			return "", err
		}
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		defer f.Close()
		peek = make([]byte, peekSize)
		n, err := io.ReadFull(f, peek)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return "", err
		}
		peek = peek[:n]
	}

	switch {
	case bytes.HasPrefix(peek, cfb.Signature):
		return "xls", nil
	case !bytes.HasPrefix(peek, zipSignature):
		return "", nil
	}

	var zr *zip.Reader
	if content != nil {
		r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return "", err
		}
		zr = r
	} else {
		p, _ := expandHome(path)
		r, err := zip.OpenReader(p)
		if err != nil {
			return "", err
		}
		defer r.Close()
		zr = &r.Reader
	}

	// some third party files use backslashes and lower case names
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))] = true
	}
	switch {
	case names["xl/workbook.xml"]:
		return "xlsx", nil
	case names["xl/workbook.bin"]:
		return "xlsb", nil
	case names["content.xml"]:
		return "ods", nil
	}
	return "zip", nil
}
