package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/cfb"
	"github.com/yamitzky/xlbiff-go/refs"
	"github.com/yamitzky/xlbiff-go/xls"
)

var version = "dev"

type options struct {
	verbosity                int
	ignoreWorkbookCorruption bool
	excelMode                bool
	shareStrings             bool
}

func (o *options) xls(logfile io.Writer) *xls.Options {
	mode := refs.ModeGeneric
	if o.excelMode {
		mode = refs.ModeExcel
	}
	return &xls.Options{
		Logfile:                  logfile,
		Verbosity:                o.verbosity,
		IgnoreWorkbookCorruption: o.ignoreWorkbookCorruption,
		ShareDuplicateStrings:    o.shareStrings,
		InsertMode:               mode,
	}
}

func (o *options) cfb(logfile io.Writer) *cfb.Options {
	return &cfb.Options{
		Logfile:                  logfile,
		Verbosity:                o.verbosity,
		IgnoreWorkbookCorruption: o.ignoreWorkbookCorruption,
	}
}

func main() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cfb.CleanupTempFiles()
		os.Exit(130)
	}()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	defer cfb.CleanupTempFiles()
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

type usageError struct{ error }

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "xlscfb",
		Short:         "Inspect and edit BIFF8 workbooks stored in compound files",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	pf := root.PersistentFlags()
	pf.CountVarP(&opts.verbosity, "verbose", "v", "increase trace output, repeat for more")
	pf.BoolVar(&opts.ignoreWorkbookCorruption, "ignore-workbook-corruption", false, "ignore workbook corruption")
	pf.BoolVar(&opts.excelMode, "excel-mode", false, "insert after the pivot row or column, as Excel does")
	pf.BoolVar(&opts.shareStrings, "share-strings", false, "share equal strings in the shared string table")

	e := &env{opts: opts, stdin: stdin, stdout: stdout, stderr: stderr}
	root.AddCommand(
		e.lsCmd(),
		e.catCmd(),
		e.recordsCmd(),
		e.cellsCmd(),
		e.refsCmd(),
		e.propsCmd(),
		e.roundtripCmd(),
		e.shiftCmd("insert-rows", "insert empty rows", (*xls.Book).InsertRows),
		e.shiftCmd("delete-rows", "delete rows", (*xls.Book).DeleteRows),
		e.shiftCmd("insert-cols", "insert empty columns", (*xls.Book).InsertColumns),
		e.shiftCmd("delete-cols", "delete columns", (*xls.Book).DeleteColumns),
		e.copySheetCmd(),
		e.defineNameCmd(),
	)
	return root
}

// env carries the streams and global flags shared by every subcommand.
type env struct {
	opts   *options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func (e *env) openContainer(path string) (*cfb.File, error) {
	if path == "-" {
		return cfb.OpenReader(e.stdin, e.opts.cfb(e.stderr))
	}
	return cfb.Open(path, e.opts.cfb(e.stderr))
}

func (e *env) openBook(path string) (*xls.Book, error) {
	if path == "-" {
		return xls.OpenReader(e.stdin, e.opts.xls(e.stderr))
	}
	return xls.Open(path, e.opts.xls(e.stderr))
}

// save writes book to path, or to standard output for "-".
func (e *env) save(book *xls.Book, path string) error {
	if path == "-" {
		_, err := book.WriteTo(e.stdout)
		return err
	}
	return book.Save(path)
}

func (e *env) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls FILE",
		Short: "list the storages and streams of a compound file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.openContainer(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			dir, err := f.Directory()
			if err != nil {
				return err
			}
			dir.Walk(func(ent *cfb.Entry) bool {
				if ent.Type == cfb.TypeRoot {
					return true
				}
				fmt.Fprintf(e.stdout, "%-7s %10d  %s\n", ent.Type, ent.Size, printable(ent.Path()))
				return true
			})
			return nil
		},
	}
}

// printable shows control characters of entry names, such as the \x05 of
// property set streams, as escapes.
func printable(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e *env) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE STREAM",
		Short: "write the content of one stream",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.openContainer(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := f.Stream(unescape(args[1]))
			if err != nil {
				return err
			}
			_, err = e.stdout.Write(data)
			return err
		},
	}
}

// unescape turns the \xNN escapes printed by ls back into characters.
func unescape(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' && i+3 < len(path) && path[i+1] == 'x' {
			if v, err := strconv.ParseUint(path[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

func (e *env) recordsCmd() *cobra.Command {
	var count, unnumbered bool
	cmd := &cobra.Command{
		Use:   "records FILE",
		Short: "dump the records of the workbook stream",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.openContainer(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			var stream []byte
			for _, name := range []string{"Workbook", "Book"} {
				if stream, err = f.Stream(name); err == nil {
					break
				}
			}
			if err != nil {
				return xls.ErrNoWorkbook
			}
			if count {
				return biff.CountRecords(stream, e.stdout)
			}
			return biff.Dump(stream, e.stdout, unnumbered)
		},
	}
	cmd.Flags().BoolVarP(&count, "count", "c", false, "print a record count summary instead")
	cmd.Flags().BoolVarP(&unnumbered, "unnumbered", "u", false, "omit stream offsets")
	return cmd
}

func (e *env) cellsCmd() *cobra.Command {
	var sheet int
	cmd := &cobra.Command{
		Use:   "cells FILE",
		Short: "print the cells of a sheet",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			s, err := book.SheetByIndex(sheet)
			if err != nil {
				return err
			}
			nrows, _ := s.Dimensions()
			for rowx := 0; rowx < nrows; rowx++ {
				for _, c := range s.Row(rowx) {
					value := formatValue(c.Value)
					if c.IsDate() {
						if t, err := c.Time(); err == nil {
							value = formatTime(t)
						}
					}
					line := fmt.Sprintf("%s\t%s\t%s", c.Name(), c.Kind, value)
					if c.Kind == biff.CellFormula {
						text, err := c.Formula()
						if err != nil {
							text = "?" + err.Error()
						}
						line += "\t=" + text
					}
					fmt.Fprintln(e.stdout, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&sheet, "sheet", "s", 0, "sheet index, counting from 0")
	return cmd
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return strconv.Quote(v)
	}
	return fmt.Sprint(v)
}

// formatTime renders a date cell, leaving out a midnight time of day.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

func (e *env) refsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs FILE",
		Short: "list the tracked references of every sheet and the defined names",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			for i, name := range book.SheetNames() {
				fmt.Fprintf(e.stdout, "%s:\n", name)
				for _, r := range book.Tracker().Refs(i) {
					fmt.Fprintf(e.stdout, "  %-9s %s\n", r.Kind, r.Area)
				}
			}
			for _, n := range book.Names() {
				fmt.Fprintf(e.stdout, "name %s\n", n)
			}
			return nil
		},
	}
}

func (e *env) propsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "props FILE",
		Short: "print document properties and pivot caches",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			props, err := book.Properties()
			if err != nil {
				return err
			}
			for _, p := range props {
				fmt.Fprintf(e.stdout, "%s.%s = %s\n", p.Set, p.Name, p.Value)
			}
			for _, c := range book.PivotCaches() {
				fmt.Fprintf(e.stdout, "pivot cache %s\n", c)
			}
			return nil
		},
	}
}

func (e *env) roundtripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roundtrip FILE OUT",
		Short: "read a workbook and write it back",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			return e.save(book, args[1])
		},
	}
}

func (e *env) shiftCmd(use, short string, edit func(*xls.Book, int, int, int) error) *cobra.Command {
	var sheet, at, count int
	cmd := &cobra.Command{
		Use:   use + " FILE OUT",
		Short: short + " and update every reference to the moved cells",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return usageError{fmt.Errorf("--count must be positive, got %d", count)}
			}
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			if err := edit(book, sheet, at, count); err != nil {
				return err
			}
			return e.save(book, args[1])
		},
	}
	cmd.Flags().IntVarP(&sheet, "sheet", "s", 0, "sheet index, counting from 0")
	cmd.Flags().IntVar(&at, "at", 0, "pivot row or column, counting from 0")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of rows or columns")
	return cmd
}

func (e *env) copySheetCmd() *cobra.Command {
	var sheet int
	var from string
	cmd := &cobra.Command{
		Use:   "copy-sheet FILE OUT NAME",
		Short: "append a copy of a sheet, optionally taken from another workbook",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			if from == "" {
				_, err = book.CopySheet(sheet, args[2])
			} else {
				var src *xls.Book
				if src, err = xls.Open(from, e.opts.xls(e.stderr)); err != nil {
					return err
				}
				defer src.Close()
				_, err = book.ImportSheet(src, sheet, args[2])
			}
			if err != nil {
				return err
			}
			return e.save(book, args[1])
		},
	}
	cmd.Flags().IntVarP(&sheet, "sheet", "s", 0, "index of the sheet to copy")
	cmd.Flags().StringVar(&from, "from", "", "workbook to import the sheet from")
	return cmd
}

func (e *env) defineNameCmd() *cobra.Command {
	var scope int
	cmd := &cobra.Command{
		Use:   "define-name FILE OUT NAME REFERENCE",
		Short: "add a defined name such as Sheet1!$A$1:$B$4",
		Args:  exactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := e.openBook(args[0])
			if err != nil {
				return err
			}
			defer book.Close()
			if _, err := book.DefineName(args[2], args[3], scope); err != nil {
				return err
			}
			return e.save(book, args[1])
		},
	}
	cmd.Flags().IntVar(&scope, "scope", -1, "sheet index of a local name, -1 for the workbook")
	return cmd
}
