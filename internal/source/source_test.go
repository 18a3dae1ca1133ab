package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/pyflowchart/internal/testutil"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"plain utf-8", []byte("x = 'é'\n"), "x = 'é'\n"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "x = 1\n"...), "x = 1\n"},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'x', 0, '\n', 0}, "x\n"},
		{"latin-1 cookie", []byte("# -*- coding: latin-1 -*-\nx = '\xe9'\n"), "# -*- coding: latin-1 -*-\nx = 'é'\n"},
		{"cookie on second line", []byte("#!/usr/bin/env python\n# vim: set fileencoding=iso-8859-15 :\nx = '\xa4'\n"), "#!/usr/bin/env python\n# vim: set fileencoding=iso-8859-15 :\nx = '€'\n"},
		{"utf-8 cookie", []byte("# coding=utf-8\nx = 1\n"), "# coding=utf-8\nx = 1\n"},
		{"undeclared latin-1", []byte("x = '\xe9'\n"), "x = '\u00e9'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("# coding: utf-8\nx = '\xe9'\n"))
	assert.Error(t, err)

	_, err = Decode([]byte("# coding: klingon\nx = 1\n"))
	assert.Error(t, err)
}

func TestCoding(t *testing.T) {
	assert.Equal(t, "iso-8859-1", Coding([]byte("# coding: Latin_1\n")))
	assert.Equal(t, "utf-8", Coding([]byte("# -*- coding: utf-8-sig -*-\n")))
	assert.Equal(t, "", Coding([]byte("x = 1\n# coding: latin-1\n")))
	assert.Equal(t, "", Coding([]byte("a = 1\nb = 2\n# coding: latin-1\n")))
}

func TestLoad_WorkingTree(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "app.py", "x = 1\n")

	got, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(got))

	_, err = Load(filepath.Join(dir, "missing.py"), "")
	assert.Error(t, err)
}

func TestReadRevision(t *testing.T) {
	dir, hashes := testutil.InitRepo(t,
		map[string]string{"pkg/app.py": "x = 1\n"},
		map[string]string{"pkg/app.py": "x = 2\n"},
	)
	path := filepath.Join(dir, "pkg", "app.py")

	got, err := ReadRevision(path, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(got))

	got, err = ReadRevision(path, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "x = 2\n", string(got))

	got, err = Load(path, "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(got))

	_, err = ReadRevision(path, "no-such-branch")
	assert.Error(t, err)

	_, err = ReadRevision(filepath.Join(dir, "pkg", "other.py"), "HEAD")
	assert.Error(t, err)
}
