package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go-vboa-hmi-api/internal/groups"
)

var (
	groupsDelimiter string
	groupsFormat    string
)

var groupsCmd = &cobra.Command{
	Use:   "groups [file]",
	Short: "Build nested timeline groups from group paths",
	Long: `Read one delimiter-separated group path per line from a file, or from
stdin when no file is given, and print the flattened group hierarchy.
Blank lines are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGroups,
}

func init() {
	groupsCmd.Flags().StringVarP(&groupsDelimiter, "delimiter", "d", groups.DefaultDelimiter, "path segment delimiter")
	groupsCmd.Flags().StringVarP(&groupsFormat, "format", "f", "json", "output format: json, yaml or tree")
}

func runGroups(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	paths, err := readPaths(in)
	if err != nil {
		return fmt.Errorf("read paths: %w", err)
	}

	descriptors := groups.Build(paths, groupsDelimiter)
	return writeDescriptors(cmd.OutOrStdout(), groupsFormat, descriptors)
}

func readPaths(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, scanner.Err()
}

func writeDescriptors(w io.Writer, format string, descriptors []groups.Descriptor) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(descriptors); err != nil {
			return err
		}
		return enc.Close()
	case "tree":
		return writeTree(w, descriptors)
	default:
		return fmt.Errorf("unsupported format %q (want json, yaml or tree)", format)
	}
}

var (
	colorBranch = color.New(color.Bold)
	colorID     = color.New(color.FgCyan)
)

// writeTree prints one node per line, indented by depth.
func writeTree(w io.Writer, descriptors []groups.Descriptor) error {
	for _, d := range descriptors {
		label := d.Label
		if len(d.ChildIDs) > 0 {
			label = colorBranch.Sprint(label)
		}
		indent := strings.Repeat("  ", d.Depth-1)
		if _, err := fmt.Fprintf(w, "%s%s  %s\n", indent, label, colorID.Sprintf("(%s)", d.ID)); err != nil {
			return err
		}
	}
	return nil
}
