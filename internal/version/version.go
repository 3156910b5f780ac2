// Package version хранит сведения о сборке, которые подставляются через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0"
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает бинарник витрины.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// GetVersion возвращает тег релиза.
func GetVersion() string { return version }

// UserAgent формирует заголовок User-Agent для утилит, которые ходят в API витрины.
func UserAgent(tool string) string {
	if tool == "" {
		tool = "storefront"
	}
	return fmt.Sprintf("%s/%s (%s)", tool, version, shortCommit(commit))
}

// LogFields возвращает поля для стартового лога.
func (b Build) LogFields() map[string]any {
	return map[string]any{
		"version": b.Version,
		"commit":  shortCommit(b.Commit),
		"built":   b.Date,
	}
}

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
