package engine

import (
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"sort"
	"strings"
)

// segment is a run of consecutive top-level declarations or statements.
type segment struct {
	src  string
	decl bool
}

// split cuts a fragment into segments that the interpreter can evaluate one
// after another. Source order is preserved: a function declared after a
// statement is only visible to the statements that follow it.
//
// The interpreter picks file or statement mode from the first token of what
// it is given, so a fragment mixing the two has to be fed in pieces. Anything
// the scanner rejects is returned whole and left to the interpreter to
// report.
func split(src string) []segment {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	var failed bool
	s.Init(file, []byte(src), func(token.Position, string) { failed = true }, 0)

	var (
		segs  []segment
		depth int
		start = -1
		first token.Token
	)
	cut := func(end int) {
		if start < 0 {
			return
		}
		chunk := src[start:min(end, len(src))]
		decl := isDecl(first, chunk)
		if n := len(segs); n > 0 && segs[n-1].decl == decl {
			segs[n-1].src += "\n" + chunk
		} else {
			segs = append(segs, segment{src: chunk, decl: decl})
		}
		start = -1
	}

	for {
		pos, tok, _ := s.Scan()
		if tok == token.EOF {
			cut(len(src))
			break
		}
		off := file.Offset(pos)
		switch tok {
		case token.LPAREN, token.LBRACE, token.LBRACK:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACK:
			depth--
		case token.SEMICOLON:
			if depth == 0 {
				cut(off)
				continue
			}
		}
		if start < 0 {
			start, first = off, tok
		}
	}

	if failed || depth != 0 || len(segs) == 0 {
		return []segment{{src: src}}
	}
	return segs
}

// isDecl reports whether chunk is a top-level declaration. A chunk starting
// with func is a declaration only if it parses as one; otherwise it is a
// function literal used in a statement.
func isDecl(first token.Token, chunk string) bool {
	switch first {
	case token.IMPORT, token.TYPE, token.VAR, token.CONST:
		return true
	case token.FUNC:
		_, err := parser.ParseFile(token.NewFileSet(), "", "package p;"+chunk, 0)
		return err == nil
	default:
		return false
	}
}

// goroutineGuard is deferred at the top of every function literal started
// with a go statement. A panic in such a goroutine would otherwise take the
// whole process down.
const goroutineGuard = ` defer func() { if r := recover(); r != nil { bridge.Recovered(r) } }();`

// guardGoroutines rewrites go statements whose function is a literal so the
// literal recovers its own panics. Source that contains no such statement,
// or that does not parse, is returned unchanged.
func guardGoroutines(seg segment) string {
	if !strings.Contains(seg.src, "go") {
		return seg.src
	}

	prefix, suffix := "package p;", ""
	if !seg.decl {
		prefix, suffix = "package p; func _() {\n", "\n}"
	}
	wrapped := prefix + seg.src + suffix

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", wrapped, 0)
	if err != nil {
		return seg.src
	}

	var at []int
	ast.Inspect(f, func(n ast.Node) bool {
		if g, ok := n.(*ast.GoStmt); ok {
			if lit, ok := g.Call.Fun.(*ast.FuncLit); ok {
				at = append(at, fset.Position(lit.Body.Lbrace).Offset+1)
			}
		}
		return true
	})
	if len(at) == 0 {
		return seg.src
	}

	// Insert back to front so earlier offsets stay valid.
	sort.Sort(sort.Reverse(sort.IntSlice(at)))
	out := wrapped
	for _, off := range at {
		out = out[:off] + goroutineGuard + out[off:]
	}
	return out[len(prefix) : len(out)-len(suffix)]
}
