package descriptor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0x1A2B3C", 0x1a2b3c},
		{"1a2b3c", 0x1a2b3c},
		{"0x0", 0},
		{"FFFFFFFFFFFFFFFF", ^uint64(0)},
	}
	for _, tt := range tests {
		got, err := ParseOffset("k", tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"", "0x", "0xZZ", "-1", "0x1_0", "1FFFFFFFFFFFFFFFF", " 10"} {
		_, err := ParseOffset("LocalPlayer", bad)
		var oerr *OffsetError
		require.ErrorAs(t, err, &oerr, bad)
		assert.Equal(t, "LocalPlayer", oerr.Key)
		assert.Equal(t, bad, oerr.Value)
	}
}

func TestValidateType(t *testing.T) {
	for token, want := range primitives {
		for _, tok := range []string{token, strings.ToUpper(token), strings.ToUpper(token[:1]) + token[1:]} {
			typ, ok := ValidateType(tok)
			require.True(t, ok, tok)
			assert.Equal(t, want, typ.Go)
			assert.False(t, typ.Pointer)

			ptr, ok := ValidateType("*" + tok)
			require.True(t, ok, "*"+tok)
			assert.True(t, ptr.Pointer)
			if token == "void" {
				assert.Equal(t, "unsafe.Pointer", ptr.GoType())
			} else {
				assert.Equal(t, "*"+want, ptr.GoType())
			}
		}
	}
	for _, bad := range []string{"", "*", "bool", "**int", "int*", "size_t", "i128", " int"} {
		_, ok := ValidateType(bad)
		assert.False(t, ok, bad)
	}
}

func TestArgumentJSON(t *testing.T) {
	imp, err := ParseImports([]byte(`{"function_signatures": {"F": {"arguments": [["a", "int"]], "return": "void"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []Argument{{"a", "int"}}, imp.FunctionSignatures["F"].Arguments)
	assert.Nil(t, imp.Offsets)

	_, err = ParseImports([]byte(`{"function_signatures": {"F": {"arguments": [["a"]], "return": "void"}}}`))
	assert.Error(t, err)
}

func allOn() *Config {
	return &Config{
		Name:                     "membase",
		ImportOffsets:            true,
		ImportMemorySignatures:   true,
		ImportFunctionSignatures: true,
	}
}

func TestCompileExamples(t *testing.T) {
	imp, err := ParseImports([]byte(`{
		"offsets": {"LocalPlayer": "0x1A2B3C"},
		"memory_signature": {"Pattern1": "48 8B ?? 05 ? ? ? ??"}
	}`))
	require.NoError(t, err)
	u, err := Compile(allOn(), imp)
	require.NoError(t, err)

	assert.Equal(t, []Offset{{"LocalPlayer", 0x1a2b3c}}, u.Offsets)
	require.Len(t, u.Signatures, 1)
	p := u.Signatures[0].Pattern
	require.Equal(t, 8, p.Len())
	for i := 0; i < p.Len(); i++ {
		b, ok := p.At(i).Value()
		switch i {
		case 0:
			assert.Equal(t, byte(0x48), b)
			assert.True(t, ok)
		case 1:
			assert.Equal(t, byte(0x8b), b)
			assert.True(t, ok)
		case 3:
			assert.Equal(t, byte(0x05), b)
			assert.True(t, ok)
		default:
			assert.False(t, ok, "elem %d", i)
		}
	}
	assert.Empty(t, u.Functions)
	assert.NotNil(t, u.Functions)
}

func TestCompileDisabled(t *testing.T) {
	imp, err := ParseImports([]byte(`{"offsets": {"A": "zz"}}`))
	require.NoError(t, err)
	u, err := Compile(&Config{Name: "x"}, imp)
	require.NoError(t, err)
	assert.Nil(t, u.Offsets)
	assert.Nil(t, u.Signatures)
	assert.Nil(t, u.Functions)
	assert.Equal(t, "imports", u.Package)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		imports string
		check   func(t *testing.T, err error)
	}{
		{"bad offset", `{"offsets": {"A": "0x1", "B": "0xG"}}`, func(t *testing.T, err error) {
			var e *OffsetError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "B", e.Key)
		}},
		{"bad arg type", `{"function_signatures": {"F": {"arguments": [["x", "int"], ["y", "string"]], "return": "void"}}}`, func(t *testing.T, err error) {
			var e *TypeError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, TypeError{Signature: "F", Field: "y", Token: "string"}, *e)
		}},
		{"bad return", `{"function_signatures": {"F": {"arguments": [], "return": "bool"}}}`, func(t *testing.T, err error) {
			var e *TypeError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "return", e.Field)
			assert.Contains(t, e.Error(), `"bool"`)
		}},
		{"bad key", `{"offsets": {"9lives": "0x1"}}`, func(t *testing.T, err error) {
			var e *NameError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "9lives", e.Name)
		}},
		{"keyword key", `{"memory_signature": {"func": "90"}}`, func(t *testing.T, err error) {
			var e *NameError
			require.ErrorAs(t, err, &e)
		}},
		{"reserved key", `{"offsets": {"Console": "0x1"}}`, func(t *testing.T, err error) {
			var e *NameError
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Reason, "generated code")
		}},
		{"cross table", `{"offsets": {"A": "0x1"}, "memory_signature": {"A": "90"}}`, func(t *testing.T, err error) {
			var e *NameError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "memory signature", e.Table)
		}},
		{"empty pattern", `{"memory_signature": {"P": "   "}}`, func(t *testing.T, err error) {
			var e *NameError
			require.ErrorAs(t, err, &e)
		}},
		{"duplicate arg", `{"function_signatures": {"F": {"arguments": [["a", "int"], ["a", "int"]], "return": "void"}}}`, func(t *testing.T, err error) {
			var e *NameError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "declared twice", e.Reason)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, err := ParseImports([]byte(tt.imports))
			require.NoError(t, err)
			_, err = Compile(allOn(), imp)
			tt.check(t, err)
		})
	}
}

func TestRender(t *testing.T) {
	imp, err := ParseImports([]byte(`{
		"offsets": {"LocalPlayer": "0x1A2B3C", "EntityList": "10"},
		"memory_signature": {"Pattern1": "48 8B ?? 05"},
		"function_signatures": {
			"CreateMove": {"arguments": [["this", "*void"], ["frametime", "float"]], "return": "uchar"},
			"Shutdown": {"arguments": [], "return": "void"}
		}
	}`))
	require.NoError(t, err)
	cfg := allOn()
	cfg.Console = true
	u, err := Compile(cfg, imp)
	require.NoError(t, err)

	files, err := Render(u, "abc")
	require.NoError(t, err)
	require.Len(t, files, 4)

	offsets := string(files[OffsetsFile])
	assert.True(t, strings.HasPrefix(offsets, GeneratedHeader+"\n"+DigestPrefix+"abc\n"))
	assert.Contains(t, offsets, "package imports")
	assert.Contains(t, offsets, "LocalPlayer uint64 = 0x1a2b3c")
	assert.Less(t, strings.Index(offsets, "EntityList"), strings.Index(offsets, "LocalPlayer"))

	sigs := string(files[SignaturesFile])
	assert.Contains(t, sigs, `import "github.com/wnxd/membase/signature"`)
	assert.Contains(t, sigs, "var Pattern1 = signature.New(signature.Byte(0x48), signature.Byte(0x8B), signature.Any, signature.Byte(0x05))")

	fns := string(files[FunctionsFile])
	assert.Contains(t, fns, "import (\n\t\"unsafe\"\n\n\t\"github.com/wnxd/membase/ctypes\"\n)")
	assert.Contains(t, fns, "type CreateMove = func(this unsafe.Pointer, frametime ctypes.Float) ctypes.UChar")
	assert.Contains(t, fns, "type Shutdown = func()\n")
	assert.Contains(t, fns, "fastcall")

	config := string(files[ConfigFile])
	assert.Contains(t, config, `Name    = "membase"`)
	assert.Contains(t, config, "Console = true")
}

func TestRenderEmptyTables(t *testing.T) {
	u, err := Compile(allOn(), &Imports{})
	require.NoError(t, err)
	files, err := Render(u, "abc")
	require.NoError(t, err)
	for _, file := range []string{SignaturesFile, FunctionsFile} {
		src := string(files[file])
		assert.NotContains(t, src, "import \"", file)
		assert.NotContains(t, src, "import (", file)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), filepath.Join("testdata", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Name:                     "membase",
		ImportOffsets:            true,
		ImportMemorySignatures:   true,
		ImportFunctionSignatures: true,
		Console:                  true,
		Package:                  "imports",
	}, *cfg)

	t.Setenv("MEMBASE_CONSOLE", "false")
	t.Setenv("MEMBASE_PACKAGE", "gen")
	cfg, err = LoadConfig(viper.New(), filepath.Join("testdata", "config.json"))
	require.NoError(t, err)
	assert.False(t, cfg.Console)
	assert.Equal(t, "gen", cfg.Package)
}

func TestGenerate(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), filepath.Join("testdata", "config.json"))
	require.NoError(t, err)
	imp, raw, err := LoadImports(filepath.Join("testdata", "imports.json"))
	require.NoError(t, err)
	u, err := Compile(cfg, imp)
	require.NoError(t, err)

	digest := Digest(cfg, raw)
	g := &Generator{Dir: t.TempDir()}
	res, err := g.Generate(u, digest)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, res.Written, 4)

	got, err := ReadDigest(filepath.Join(g.Dir, OffsetsFile))
	require.NoError(t, err)
	assert.Equal(t, digest, got)

	res, err = g.Generate(u, digest)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	g.Force = true
	res, err = g.Generate(u, digest)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Written)
	g.Force = false

	cfg.ImportOffsets = false
	u, err = Compile(cfg, imp)
	require.NoError(t, err)
	next := Digest(cfg, raw)
	assert.NotEqual(t, digest, next)

	stale, err := g.Stale(u, next)
	require.NoError(t, err)
	assert.Contains(t, stale, OffsetsFile)

	res, err = g.Generate(u, next)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(g.Dir, OffsetsFile)}, res.Removed)
	_, err = os.Stat(filepath.Join(g.Dir, OffsetsFile))
	assert.True(t, os.IsNotExist(err))
}

func TestReadDigestForeign(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.go")
	require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0o644))
	got, err := ReadDigest(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}
