/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commander

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

const (
	// PrinterAllowedFormats is the annotation key for a comma-delimited list of
	// the output formats a command supports (e.g. to allow only JSON and YAML).
	PrinterAllowedFormats = "allowedFormats"
	// PrinterOutputFormat is the annotation key for the default output format of
	// a command. It must be one of the allowed formats.
	PrinterOutputFormat = "outputFormat"
	// PrinterColumns is the annotation key for a comma-delimited list of the
	// columns displayed by the tabular formats.
	PrinterColumns = "columns"
	// PrinterNoHeader is the annotation key for the initial value of the
	// suppress header flag.
	PrinterNoHeader = "noHeader"
)

// ResourcePrinter formats an object to a byte stream
type ResourcePrinter interface {
	// PrintObj formats the specified object to the specified writer
	PrintObj(interface{}, io.Writer) error
}

// ResourcePrinterFunc allows a simple function to be used as resource printer
type ResourcePrinterFunc func(interface{}, io.Writer) error

// PrintObj invokes the function
func (rpf ResourcePrinterFunc) PrintObj(obj interface{}, w io.Writer) error {
	return rpf(obj, w)
}

// TableMeta is used to inspect objects for formatting
type TableMeta interface {
	// ExtractList accepts a single object (which possibly represents a list) and returns a slice to iterate over
	ExtractList(obj interface{}) ([]interface{}, error)
	// Columns returns the default list of columns to render for a given output format
	Columns(obj interface{}, outputFormat string) []string
	// ExtractValue returns the column string value for a given object from the extract list result
	ExtractValue(obj interface{}, column string) (string, error)
	// Header returns the header value to use for a column
	Header(outputFormat string, column string) string
}

// NoPrinterError is an error occurring when no suitable printer is available
type NoPrinterError struct {
	// OutputFormat is the requested output format
	OutputFormat string
	// AllowedFormats are the available output formats
	AllowedFormats []string
}

// Error returns a useful message for a "no printer" error
func (e NoPrinterError) Error() string {
	allowed := append([]string(nil), e.AllowedFormats...)
	sort.Strings(allowed)
	return fmt.Sprintf("no printer for %s, allowed formats are: %s", e.OutputFormat, strings.Join(allowed, ","))
}

// requiresMeta returns true for the formats that require a TableMeta
func requiresMeta(outputFormat string) bool {
	switch outputFormat {
	case "name", "wide", "csv", "":
		return true
	}
	return false
}

// printFlags are the options for creating a printer
type printFlags struct {
	allowedFormats []string
	outputFormat   string
	meta           TableMeta
	columns        []string
	noHeader       bool
}

func splitList(s string) []string {
	l := strings.FieldsFunc(s, func(c rune) bool { return c == ',' })
	for i := range l {
		l[i] = strings.TrimSpace(l[i])
	}
	return l
}

// newPrintFlags returns a new print flags instance with settings parsed from the command annotations
func newPrintFlags(meta TableMeta, annotations map[string]string) *printFlags {
	pf := &printFlags{meta: meta}
	pf.columns = splitList(annotations[PrinterColumns])
	pf.noHeader, _ = strconv.ParseBool(annotations[PrinterNoHeader])

	outputFormat := strings.ToLower(annotations[PrinterOutputFormat])
	allowedFormats := splitList(strings.ToLower(annotations[PrinterAllowedFormats]))
	if len(allowedFormats) == 0 {
		allowedFormats = []string{"json", "yaml", "name", "wide", "csv", ""}
	}

	seen := make(map[string]bool, len(allowedFormats))
	for _, f := range allowedFormats {
		if seen[f] || (requiresMeta(f) && pf.meta == nil) {
			continue
		}
		seen[f] = true
		pf.allowedFormats = append(pf.allowedFormats, f)
		if outputFormat == f {
			pf.outputFormat = f
		}
	}

	// Override the output format if there is no choice
	if len(pf.allowedFormats) == 1 {
		pf.outputFormat = pf.allowedFormats[0]
	}

	return pf
}

// addFlags adds command line flags for configuring the printer
func (f *printFlags) addFlags(cmd *cobra.Command) {
	if len(f.allowedFormats) > 1 {
		cmd.Flags().StringVarP(&f.outputFormat, "output", "o", f.outputFormat, "output `format`")
		SetFlagValues(cmd, "output", f.allowedFormats...)
	}

	for _, allowedFormat := range f.allowedFormats {
		if requiresMeta(allowedFormat) {
			cmd.Flags().BoolVar(&f.noHeader, "no-headers", f.noHeader, "don't print headers")
			break
		}
	}
}

// toPrinter generates a new printer
func (f *printFlags) toPrinter(printer *ResourcePrinter) error {
	outputFormat := strings.ToLower(f.outputFormat)
	for _, allowedFormat := range f.allowedFormats {
		if outputFormat != allowedFormat {
			continue
		}

		switch outputFormat {
		case "json", "yaml":
			*printer = &marshalPrinter{outputFormat: outputFormat}
		case "csv":
			*printer = &csvPrinter{meta: f.meta, headers: !f.noHeader}
		case "name":
			*printer = &tablePrinter{meta: f.meta, columns: []string{"name"}, outputFormat: outputFormat}
		default:
			*printer = &tablePrinter{meta: f.meta, columns: f.columns, headers: !f.noHeader, outputFormat: outputFormat}
		}
		return nil
	}
	return NoPrinterError{OutputFormat: f.outputFormat, AllowedFormats: f.allowedFormats}
}

// marshalPrinter generates output using a generic encoding, JSON is used unless YAML is requested
type marshalPrinter struct {
	outputFormat string
}

// PrintObj will marshal the supplied object
func (p *marshalPrinter) PrintObj(obj interface{}, w io.Writer) error {
	if p.outputFormat == "yaml" {
		output, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = w.Write(output)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(obj)
}

// tablePrinter is a printer that generates tabular output
type tablePrinter struct {
	meta         TableMeta
	columns      []string
	headers      bool
	outputFormat string
}

// PrintObj generates the tabular data
func (p *tablePrinter) PrintObj(obj interface{}, w io.Writer) error {
	rows, err := p.meta.ExtractList(obj)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err = fmt.Fprintln(w, "No trials found.")
		return err
	}

	columns := p.columns
	if len(columns) == 0 {
		columns = p.meta.Columns(obj, p.outputFormat)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	buf := make([]string, len(columns))

	if p.headers {
		for i := range columns {
			buf[i] = p.meta.Header(p.outputFormat, columns[i])
		}
		if err := printRow(tw, buf); err != nil {
			return err
		}
	}

	for _, row := range rows {
		for i := range columns {
			if buf[i], err = p.meta.ExtractValue(row, columns[i]); err != nil {
				return err
			}
		}
		if err := printRow(tw, buf); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// printRow formats a single row, a single column has no trailing tab or padding
func printRow(w io.Writer, row []string) error {
	if len(row) == 1 {
		_, err := fmt.Fprintln(w, row[0])
		return err
	}
	_, err := fmt.Fprintf(w, "%s\t\n", strings.Join(row, "\t"))
	return err
}

// csvPrinter generates Comma Separated Value (CSV) output
type csvPrinter struct {
	meta    TableMeta
	headers bool
}

// PrintObj generates the CSV data
func (p *csvPrinter) PrintObj(obj interface{}, w io.Writer) error {
	rows, err := p.meta.ExtractList(obj)
	if err != nil {
		return err
	}

	columns := p.meta.Columns(obj, "csv")
	cw := csv.NewWriter(w)
	buf := make([]string, len(columns))

	if p.headers {
		for i := range columns {
			buf[i] = p.meta.Header("csv", columns[i])
		}
		if err := cw.Write(buf); err != nil {
			return err
		}
	}

	for _, row := range rows {
		for i := range columns {
			if buf[i], err = p.meta.ExtractValue(row, columns[i]); err != nil {
				return err
			}
		}
		if err := cw.Write(buf); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
