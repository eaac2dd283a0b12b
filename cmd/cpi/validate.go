package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check an output CSV for layout and row integrity",
		Long: `validate reads an enriched CSV (DATA_DIR/OUTPUT_FILE by default) and checks
the header, the column count and field formats of every row. Rows with an
unknown area or item, and rows duplicated by repeated runs, are reported as
warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, _, err := setup()
				if err != nil {
					return err
				}
				path = cfg.OutputPath()
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := validateOutput(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			report.print(cmd.OutOrStdout())
			if !report.passed() {
				return errors.New("validation failed")
			}
			return nil
		},
	}
	return cmd
}

// phase tracks pass/fail for a validation phase. Warnings never fail it.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type report struct {
	rows   int
	phases []*phase
}

func (r *report) passed() bool {
	for _, p := range r.phases {
		if !p.passed() {
			return false
		}
	}
	return true
}

// maxListed caps how many problems are printed per phase.
const maxListed = 20

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "Rows: %d\n\n", r.rows)
	for _, p := range r.phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
		}
		if len(p.warnings) > 0 {
			status += fmt.Sprintf(", %d warnings", len(p.warnings))
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}
	for _, p := range r.phases {
		for _, list := range [][]string{p.errors, p.warnings} {
			for i, msg := range list {
				if i == maxListed {
					fmt.Fprintf(w, "  ... %d more\n", len(list)-maxListed)
					break
				}
				fmt.Fprintf(w, "  [%s] %s\n", p.name, msg)
			}
		}
	}
}

// validateOutput checks an enriched CSV. It only returns an error when the
// input cannot be read as CSV at all.
func validateOutput(r io.Reader) (*report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("file is empty")
	}

	header, rows := all[0], all[1:]
	rep := &report{rows: len(rows)}

	layout := &phase{name: "header"}
	if !slices.Equal(header, domain.OutputHeader) {
		layout.errorf("header is %q, want %q", strings.Join(header, ","), strings.Join(domain.OutputHeader, ","))
	}
	for i, row := range rows {
		if slices.Equal(row, domain.OutputHeader) {
			layout.errorf("line %d: header repeated mid-file", i+2)
		}
	}

	shape := &phase{name: "row fields"}
	join := &phase{name: "catalog join"}
	dupes := &phase{name: "duplicates"}
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		line := i + 2
		if slices.Equal(row, domain.OutputHeader) {
			continue
		}
		if len(row) != len(domain.OutputHeader) {
			shape.errorf("line %d: %d columns, want %d", line, len(row), len(domain.OutputHeader))
			continue
		}
		checkRow(shape, line, row)

		if row[1] == "" {
			join.warnf("line %d: %s has no area name", line, row[0])
		}
		if row[2] == "" {
			join.warnf("line %d: %s has no item name", line, row[0])
		}

		key := row[0] + "|" + row[3] + "|" + row[4]
		if first, ok := seen[key]; ok {
			dupes.warnf("line %d: %s %s %s repeats line %d", line, row[0], row[3], row[4], first)
		} else {
			seen[key] = line
		}
	}

	rep.phases = []*phase{layout, shape, join, dupes}
	return rep, nil
}

func checkRow(p *phase, line int, row []string) {
	id := domain.SeriesID(row[0])
	if !strings.HasPrefix(string(id), domain.SeriesPrefix+domain.SeasonalFlag+domain.PeriodicityFlag) {
		p.errorf("line %d: series id %q has an unexpected prefix", line, id)
	} else if _, _, err := domain.DecodeSeriesID(id); err != nil {
		p.errorf("line %d: %v", line, err)
	}
	if _, err := strconv.Atoi(row[3]); err != nil || len(row[3]) != 4 {
		p.errorf("line %d: year %q is not a four digit year", line, row[3])
	}
	if row[4] == "" {
		p.errorf("line %d: period is empty", line)
	}
	if _, err := strconv.ParseBool(row[6]); err != nil {
		p.errorf("line %d: latest %q is not a boolean", line, row[6])
	}
	if row[7] == "" {
		p.errorf("line %d: value is empty", line)
	}
	var notes []domain.Footnote
	if err := json.Unmarshal([]byte(row[8]), &notes); err != nil {
		p.errorf("line %d: footnotes %q are not a JSON array", line, row[8])
	}
}
