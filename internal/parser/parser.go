// Package parser reads course definition files.
//
// A file holds any number of course blocks. "N:" starts a course and gives
// its name, "D:" starts its description, and "---" closes the block. Lines
// that follow a prefixed line continue that field.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/courseboard/internal/domain"
)

const (
	namePrefix        = "N:"
	descriptionPrefix = "D:"
	separator         = "---"
)

type state int

const (
	seeking state = iota
	readingName
	readingDescription
)

// ParseFile reads a file from the given path and extracts all courses.
func ParseFile(path string) ([]domain.Course, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all courses. Blocks without a
// name are dropped.
func Parse(r io.Reader) ([]domain.Course, error) {
	scanner := bufio.NewScanner(r)
	var courses []domain.Course
	var current domain.Course
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingName:
			current.Name = content
		case readingDescription:
			current.Description = content
		}
		block = nil
	}

	finishCourse := func() {
		flushBlock()
		if current.Name != "" {
			courses = append(courses, current)
		}
		current = domain.Course{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == separator:
			finishCourse()
		case strings.HasPrefix(line, namePrefix):
			if currentState != seeking { // A new name always starts a new course
				finishCourse()
			}
			currentState = readingName
			block = append(block, trimPrefix(line, namePrefix))
		case strings.HasPrefix(line, descriptionPrefix):
			flushBlock()
			currentState = readingDescription
			block = append(block, trimPrefix(line, descriptionPrefix))
		case currentState != seeking:
			block = append(block, line)
		}
	}

	finishCourse() // Finish the very last course in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return courses, nil
}

func trimPrefix(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}
