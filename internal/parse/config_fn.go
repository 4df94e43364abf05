package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/d5/tengo/v2/parser"
	"github.com/zclconf/go-cty/cty"
)

// configSignature is the statically extracted shape of a config function.
type configSignature struct {
	params  []string
	imports []string
}

// parseConfigSignature checks that the config attribute holds exactly one
// function literal and extracts its parameter names and stdlib imports.
// The function body itself is not interpreted here; it is compiled later as
// part of the synthesized entry point.
func parseConfigSignature(src string) (*configSignature, error) {
	if src == "" {
		return nil, fmt.Errorf("config must not be empty")
	}

	fileSet := parser.NewFileSet()
	srcFile := fileSet.AddFile("config", -1, len(src))
	p := parser.NewParser(srcFile, []byte(src), nil)
	file, err := p.ParseFile()
	if err != nil {
		return nil, err
	}

	if len(file.Stmts) != 1 {
		return nil, fmt.Errorf("config must contain exactly one function literal")
	}
	exprStmt, ok := file.Stmts[0].(*parser.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("config must be a function literal, not a statement")
	}
	fn, ok := exprStmt.Expr.(*parser.FuncLit)
	if !ok {
		return nil, fmt.Errorf("config must be a function literal")
	}

	sig := &configSignature{}
	if fn.Type.Params != nil {
		for _, ident := range fn.Type.Params.List {
			sig.params = append(sig.params, ident.Name)
		}
	}
	sig.imports = scanImports(src)
	return sig, nil
}

// scanImports collects the string arguments of import(...) calls. The scan
// walks the already-parsed source word by word, skipping comments and
// string, char and raw literals, so quoted text never registers as an
// import. The sandbox only resolves static stdlib imports, which keeps the
// check deterministic; the compile step still catches anything dynamic.
func scanImports(src string) []string {
	var imports []string
	seen := map[string]bool{}

	sc := &sourceScanner{src: src}
	for {
		word, end, ok := sc.nextWord()
		if !ok {
			return imports
		}
		if word != "import" {
			continue
		}
		name, next, ok := importArg(src, end)
		if !ok {
			continue
		}
		sc.pos = next
		if !seen[name] {
			seen[name] = true
			imports = append(imports, name)
		}
	}
}

// usesIdent reports whether the identifier occurs in the source outside
// comments and literals.
func usesIdent(src, name string) bool {
	sc := &sourceScanner{src: src}
	for {
		word, _, ok := sc.nextWord()
		if !ok {
			return false
		}
		if word == name {
			return true
		}
	}
}

// importArg reads the single string argument of an import call starting
// right after the import keyword.
func importArg(src string, pos int) (string, int, bool) {
	n := len(src)
	i := pos
	for i < n && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= n || src[i] != '(' {
		return "", 0, false
	}
	i++
	for i < n && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= n || (src[i] != '"' && src[i] != '`') {
		return "", 0, false
	}
	quote := src[i]
	i++
	end := strings.IndexByte(src[i:], quote)
	if end < 0 {
		return "", 0, false
	}
	return src[i : i+end], i + end + 1, true
}

// sourceScanner yields the identifier-shaped words of a config source in
// order, stepping over comments and string, char and raw literals.
type sourceScanner struct {
	src string
	pos int
}

func (s *sourceScanner) nextWord() (string, int, bool) {
	src, n := s.src, len(s.src)
	i := s.pos
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		case c == '"' || c == '\'':
			i = skipQuoted(src, i)
		case c == '`':
			i++
			for i < n && src[i] != '`' {
				i++
			}
			i++
		case isWordByte(c):
			start := i
			for i < n && isWordByte(src[i]) {
				i++
			}
			s.pos = i
			return src[start:i], i, true
		default:
			i++
		}
	}
	s.pos = i
	return "", i, false
}

// skipQuoted advances past a quoted literal, honoring backslash escapes.
func skipQuoted(src string, i int) int {
	quote := src[i]
	i++
	n := len(src)
	for i < n && src[i] != quote {
		if src[i] == '\\' {
			i++
		}
		i++
	}
	return i + 1
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// renderLiteral converts a static HCL literal into sandbox-language source.
// Only strings, numbers and bools are default-constructible input values.
func renderLiteral(val cty.Value) (string, error) {
	if val.IsNull() {
		return "", fmt.Errorf("default must not be null")
	}
	switch val.Type() {
	case cty.String:
		return strconv.Quote(val.AsString()), nil
	case cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return strconv.FormatInt(i, 10), nil
		}
		f, _ := bf.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case cty.Bool:
		if val.True() {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("default must be a string, number, or bool literal")
	}
}
