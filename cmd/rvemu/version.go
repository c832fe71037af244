package main

import (
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// commitHash returns the stamped Commit, or the short HEAD hash of the
// repository holding the working directory or the executable.
func commitHash() string {
	if Commit != "none" && Commit != "" {
		return Commit
	}
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	for _, dir := range dirs {
		if hash := headHash(dir); hash != "" {
			return hash[:min(8, len(hash))]
		}
	}
	return "unknown"
}

func headHash(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
