package browser

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Artifact is the screenshot kept for one failed test.
type Artifact struct {
	Test      string
	Path      string
	Base64    bool
	Data      []byte
	CreatedAt time.Time
}

const decodeSnippet = `import base64
with open('screenshot.png', 'wb') as fp:
    fp.write(base64.b64decode('''%s'''))
`

var notice = color.New(color.FgRed, color.Bold)

// ArtifactName returns the file name for a screenshot of test taken at ts:
// <package>::<test>::<timestamp>.png
func ArtifactName(pkg, test string, ts time.Time) string {
	parts := []string{sanitize(pkg), sanitize(test), ts.UTC().Format("20060102T150405.000000")}
	return strings.Join(parts, "::") + ".png"
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

// writeArtifact stores png in dir, or prints it when dir cannot be written.
// With output base64 the image is printed in addition to being stored.
func writeArtifact(out io.Writer, dir string, output Output, name string, png []byte) Artifact {
	a := Artifact{Data: png, CreatedAt: time.Now()}

	notice.Fprintln(out, "Screenshot of failing test:")

	path := filepath.Join(dir, name)
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		err = os.WriteFile(path, png, 0o644)
	}
	if err == nil {
		a.Path = path
		fmt.Fprintln(out, path)
	}

	if output == OutputBase64 || err != nil {
		a.Base64 = true
		fmt.Fprintf(out, decodeSnippet, base64.StdEncoding.EncodeToString(png))
	}
	return a
}
