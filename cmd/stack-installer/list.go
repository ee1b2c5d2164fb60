package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/repository"
)

var listJSON bool

type packageView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Kind         string   `json:"kind"`
	SizeBytes    int64    `json:"sizeBytes"`
	Dependencies []string `json:"dependencies,omitempty"`
	Optional     bool     `json:"optional"`
	URL          string   `json:"downloadUrl"`
}

func createListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the packages available in the catalog",
		Args:  cobra.NoArgs,
		RunE:  executeList,
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the catalog as JSON")
	return listCmd
}

func createResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve PACKAGE...",
		Short: "Shows the install order for the given packages",
		Args:  cobra.MinimumNArgs(1),
		RunE:  executeResolve,
	}
}

func executeList(cmd *cobra.Command, args []string) error {
	repo, source, err := newRepository(globalConfig)
	if err != nil {
		return err
	}
	pkgs, err := repo.GetAvailablePackages(cmd.Context(), source)
	if err != nil {
		return err
	}
	sortPackages(pkgs)

	views := make([]packageView, 0, len(pkgs))
	for _, p := range pkgs {
		views = append(views, toView(p))
	}
	if listJSON {
		b, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}
	return printPackages(cmd.OutOrStdout(), views)
}

func executeResolve(cmd *cobra.Command, args []string) error {
	ids, err := parsePackageIDs(args)
	if err != nil {
		return err
	}
	repo, source, err := newRepository(globalConfig)
	if err != nil {
		return err
	}
	available, err := repo.GetAvailablePackages(cmd.Context(), source)
	if err != nil {
		return err
	}

	var selected []catalog.Package
	for _, id := range ids {
		found := false
		for _, p := range available {
			if p.ID == id {
				selected = append(selected, p)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("package %s is not in the catalog", id)
		}
	}

	ordered, err := repository.ResolveDependencies(selected, available)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, p := range ordered {
		fmt.Fprintf(out, "%d. %s %s\n", i+1, p.ID, p.Version)
	}
	return nil
}

// sortPackages orders by id, newest version first within an id.
func sortPackages(pkgs []catalog.Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		if pkgs[i].ID != pkgs[j].ID {
			return pkgs[i].ID < pkgs[j].ID
		}
		vi, erri := pkgs[i].SemVer()
		vj, errj := pkgs[j].SemVer()
		if erri != nil || errj != nil {
			return pkgs[i].Version > pkgs[j].Version
		}
		return vi.GreaterThan(vj)
	})
}

func toView(p catalog.Package) packageView {
	deps := make([]string, len(p.Dependencies))
	for i, d := range p.Dependencies {
		deps[i] = string(d)
	}
	return packageView{
		ID:           string(p.ID),
		Name:         p.Name,
		Version:      p.Version,
		Kind:         p.Kind.String(),
		SizeBytes:    p.EstimatedSizeBytes,
		Dependencies: deps,
		Optional:     p.Optional,
		URL:          p.DownloadURL,
	}
}

func printPackages(w io.Writer, views []packageView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tKIND\tSIZE\tDEPENDS ON")
	for _, v := range views {
		deps := strings.Join(v.Dependencies, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f MB\t%s\n", v.ID, v.Name, v.Version, v.Kind, float64(v.SizeBytes)/(1<<20), deps)
	}
	return tw.Flush()
}
