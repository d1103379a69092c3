package testutil

import (
	"os"
	"testing"
)

// Chdir changes the working directory to dir for the duration of the test,
// like testing.T.Chdir on Go 1.24+.
func Chdir(t testing.TB, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("testutil.Chdir: restoring working directory: " + err.Error())
		}
	})
}
