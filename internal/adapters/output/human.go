package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/tome-audio/tome/internal/core"
	"github.com/tome-audio/tome/pkg/tome"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(data)
	case core.StatusResult:
		return printStatus(data.Player.Name, data.State)
	case core.BooksResult:
		return printBooks(data)
	case tome.PlayerState:
		return printStatus("", data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printNodes(result core.NodesResult) error {
	rows := pterm.TableData{{"NAME", "KIND", "NODE_ID"}}
	for _, node := range result.Nodes {
		rows = append(rows, []string{node.Name, node.Kind, node.NodeID})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func printBooks(result core.BooksResult) error {
	rows := pterm.TableData{{"TITLE", "AUTHOR", "CHAPTERS", "ID"}}
	for _, book := range result.Books {
		rows = append(rows, []string{
			book.Title,
			book.Author,
			fmt.Sprintf("%d", len(book.Chapters)),
			book.ID,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func printStatus(playerName string, state tome.PlayerState) error {
	status := state.Status
	if status == "" {
		status = "unknown"
	}

	parts := []string{}
	if playerName != "" {
		parts = append(parts, playerName)
	}
	parts = append(parts, fmt.Sprintf("[%s]", status))
	if state.BookTitle != "" {
		parts = append(parts, state.BookTitle)
	}
	if state.ChapterTitle != "" {
		parts = append(parts, fmt.Sprintf("ch %d: %s", state.Chapter+1, state.ChapterTitle))
	}
	parts = append(parts, formatPosition(state.PositionMS))
	if state.Rate != 0 && state.Rate != 1.0 {
		parts = append(parts, fmt.Sprintf("%.2fx", state.Rate))
	}
	if state.SkipSilence {
		parts = append(parts, "skip-silence")
	}
	if state.GainMB != 0 {
		parts = append(parts, fmt.Sprintf("gain %+dmB", state.GainMB))
	}

	line := strings.Join(parts, "  ")
	if state.Status == "playing" {
		line = pterm.Green(line)
	}
	_, err := fmt.Fprintln(os.Stdout, line)
	return err
}

func formatPosition(positionMS int64) string {
	total := positionMS / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
