package main

import (
	"os"
	"testing"
)

// The favicon middleware reads its file once at startup and panics when it is
// missing, so the assets the server is configured with must ship in the tree.
func TestStaticAssetsShipWithTree(t *testing.T) {
	basePaths := []string{"./", "../../", "../../../"}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}
	if basePath == "" {
		t.Fatal("project root not found from the test working directory")
	}

	for _, f := range []string{
		"public/assets/icons/favicon.ico",
		"public/assets/css/app.css",
		"public/docs/v1/openapi.yml",
	} {
		info, err := os.Stat(basePath + f)
		if err != nil {
			t.Errorf("missing static asset %s: %v", f, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("static asset %s is empty", f)
		}
	}
}
