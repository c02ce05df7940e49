package assets

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// bundledJSSet resolves which logical JS paths participate in the bundle.
// Exclusion is absolute: an excluded file is never bundled even when the
// order list names it.
func (p *Pipeline) bundledJSSet() map[string]bool {
	out := make(map[string]bool, len(p.JSOrder))
	excluded := make(map[string]bool, len(p.JSExclude))
	for _, e := range p.JSExclude {
		excluded[e] = true
	}
	for _, name := range p.JSOrder {
		if !excluded[name] {
			out[name] = true
		}
	}
	return out
}

// bundleJS concatenates the declared module order into js/bundle.js.
// Modules in the bundle are withheld from direct copy by Process.
func (p *Pipeline) bundleJS() error {
	set := p.bundledJSSet()
	var buf bytes.Buffer
	for _, name := range p.JSOrder {
		if !set[name] {
			continue
		}
		src := filepath.Join(p.assetsDir, filepath.FromSlash(name))
		data, err := afero.ReadFile(p.srcFs, src)
		if err != nil {
			return fmt.Errorf("bundle module %s: %w", name, err)
		}
		buf.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	content := buf.Bytes()
	if p.flags.Minify {
		out, ok := MinifyContent("text/javascript", content)
		if !ok {
			p.stats.RecordWarning("⚠️ JS minify failed for js/bundle.js, shipping unminified")
		}
		content = out
	}
	return p.write("js/bundle.js", content)
}
