package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []segment
	}{
		{
			name: "statements only",
			src:  "x := 1\nx++",
			want: []segment{{src: "x := 1\nx++"}},
		},
		{
			name: "declaration then statement",
			src:  "func f() int {\n\treturn 1\n}\nbridge.Return(f())",
			want: []segment{
				{src: "func f() int {\n\treturn 1\n}", decl: true},
				{src: "bridge.Return(f())"},
			},
		},
		{
			name: "consecutive declarations merge",
			src:  "type t int\nvar v t\nfunc (t) M() {}\nv.M()",
			want: []segment{
				{src: "type t int\nvar v t\nfunc (t) M() {}", decl: true},
				{src: "v.M()"},
			},
		},
		{
			name: "func literal is a statement",
			src:  "func() { x = 2 }()\ny := 3",
			want: []segment{{src: "func() { x = 2 }()\ny := 3"}},
		},
		{
			name: "parenthesised declaration",
			src:  "const (\n\ta = 1\n\tb = 2\n)\nbridge.Return(a + b)",
			want: []segment{
				{src: "const (\n\ta = 1\n\tb = 2\n)", decl: true},
				{src: "bridge.Return(a + b)"},
			},
		},
		{
			name: "unbalanced source is left whole",
			src:  "func f() {\nx := 1",
			want: []segment{{src: "func f() {\nx := 1"}},
		},
		{
			name: "blank",
			src:  "\n\n",
			want: []segment{{src: "\n\n"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, split(tt.src))
		})
	}
}

func TestGuardGoroutines(t *testing.T) {
	got := guardGoroutines(segment{src: "go func() {\n\twork()\n}()\ngo named()"})
	require.Contains(t, got, "bridge.Recovered(r)")
	assert.Contains(t, got, "work()")
	assert.Contains(t, got, "go named()")

	plain := "x := 1\nbridge.Return(x)"
	assert.Equal(t, plain, guardGoroutines(segment{src: plain}))

	decl := guardGoroutines(segment{src: "func start() {\n\tgo func() { work() }()\n}", decl: true})
	assert.Contains(t, decl, "bridge.Recovered(r)")
	assert.Contains(t, decl, "func start()")
}
