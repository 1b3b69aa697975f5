package game

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notnil/chess"
)

// ReadGames parses every game in a PGN stream
func ReadGames(reader io.Reader) ([]*chess.Game, error) {
	var games []*chess.Game

	scanner := chess.NewScanner(reader)
	for scanner.Scan() {
		if g := scanner.Next(); g != nil {
			games = append(games, g)
		}
	}

	// EOF is expected at end of file, not an error
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error parsing PGN: %w", err)
	}

	return games, nil
}

// ResumeFile validates a PGN file and resumes its last game
func ResumeFile(path string) (*Tracker, error) {
	if err := ValidatePGN(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PGN file: %w", err)
	}
	defer file.Close()

	games, err := ReadGames(file)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("no games in %s", path)
	}
	return &Tracker{game: games[len(games)-1]}, nil
}

// ValidatePGN checks if a PGN file is valid without fully parsing it
func ValidatePGN(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content := make([]byte, 1024)
	n, err := file.Read(content)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// Check for basic PGN markers
	contentStr := string(content[:n])
	if !strings.Contains(contentStr, "[Event") && !strings.Contains(contentStr, "1.") {
		return fmt.Errorf("file does not appear to be a valid PGN file")
	}

	return nil
}
