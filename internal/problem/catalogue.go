package problem

import (
	"embed"
	"io/fs"
)

//go:embed catalogue/*.yaml
var catalogueFS embed.FS

// BuiltinLoader returns a loader over the problems shipped with the binary.
func BuiltinLoader() *Loader {
	sub, err := fs.Sub(catalogueFS, "catalogue")
	if err != nil {
		panic(err)
	}
	return NewFSLoader(sub)
}
