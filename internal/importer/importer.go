// Package importer loads courses from definition files kept in local
// directories or git repositories.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/courseboard/internal/domain"
	"github.com/conorfennell/courseboard/internal/fingerprint"
	"github.com/conorfennell/courseboard/internal/gitsource"
	"github.com/conorfennell/courseboard/internal/parser"
)

// Store is the subset of the course store the importer needs.
type Store interface {
	Add(ctx context.Context, course domain.Course) bool
	ListAll(ctx context.Context) ([]domain.Course, error)
}

// Report summarises an import run.
type Report struct {
	Sources int
	Parsed  int
	Added   int
	Skipped int
	Errors  int
}

// Importer adds courses found in sources that are not in the store yet.
type Importer struct {
	store    Store
	reposDir string
	log      *slog.Logger
}

// New creates an importer. Git sources are cloned below reposDir.
func New(store Store, reposDir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:    store,
		reposDir: reposDir,
		log:      logger.With("component", "importer"),
	}
}

// Run imports every source in turn. A failing source is logged and counted,
// and the remaining sources are still processed.
func (im *Importer) Run(ctx context.Context, sources []string) Report {
	var report Report
	im.log.Info("Starting import", "sources", len(sources))

	existing, err := im.store.ListAll(ctx)
	if err != nil {
		im.log.Error("Failed to list existing courses", "error", err)
		report.Errors++
		return report
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[fingerprint.Hash(c)] = true
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			im.log.Warn("Import cancelled", "error", err)
			report.Errors++
			break
		}
		report.Sources++
		im.log.Info("Importing source", "source", source)

		path := source
		if isGitSource(source) {
			localPath, err := gitURLToLocalPath(im.reposDir, source)
			if err != nil {
				im.log.Error("Error determining local path for git repo", "url", source, "error", err)
				report.Errors++
				continue
			}
			if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
				im.log.Error("Failed to create repos directory", "path", localPath, "error", err)
				report.Errors++
				continue
			}
			if err := gitsource.Sync(ctx, im.log, source, localPath, nil); err != nil {
				im.log.Error("Error syncing git repo", "url", source, "error", err)
				report.Errors++
				continue
			}
			path = localPath
		}

		im.importDir(ctx, path, known, &report)
	}

	im.log.Info("Import complete",
		"sources", report.Sources,
		"parsed", report.Parsed,
		"added", report.Added,
		"skipped", report.Skipped,
		"errors", report.Errors,
	)
	return report
}

func (im *Importer) importDir(ctx context.Context, root string, known map[string]bool, report *Report) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		courses, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			im.log.Warn("Failed to parse file", "path", path, "error", parseErr)
			report.Errors++
			return nil
		}
		for _, course := range courses {
			report.Parsed++
			hash := fingerprint.Hash(course)
			if known[hash] {
				report.Skipped++
				continue
			}
			if !im.store.Add(ctx, course) {
				report.Errors++
				continue
			}
			im.log.Debug("New course imported", "name", course.Name, "hash", hash)
			known[hash] = true
			report.Added++
		}
		return nil
	})
	if walkErr != nil {
		im.log.Error("Error walking directory", "path", root, "error", walkErr)
		report.Errors++
	}
}

func isGitSource(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "file://")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err == nil && parsedURL.Scheme == "file" {
		return filepath.Join(baseDir, "local", strings.TrimSuffix(parsedURL.Path, ".git")), nil
	}
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
