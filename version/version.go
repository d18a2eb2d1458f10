package version

import (
	"fmt"
	"strings"
	"sync"
)

// buildCharacters are the characters allowed in appBuild.
const buildCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild can be set at link time with
// '-ldflags "-X github.com/ledgerkit/ledgerd/version.appBuild=foo"'.
// It is ignored unless it only holds buildCharacters.
var appBuild string

var (
	versionOnce sync.Once
	version     string
)

// Version returns the application version in semver form, with the build
// metadata appended when present.
func Version() string {
	versionOnce.Do(func() {
		version = formatVersion(appBuild)
	})
	return version
}

func formatVersion(build string) string {
	base := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if build == "" || strings.Trim(build, buildCharacters) != "" {
		return base
	}
	return base + "-" + build
}
