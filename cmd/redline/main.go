// Command redline compares two WordprocessingML documents and writes a
// document in which the differences are tracked revisions.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/redline/core/compare"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/hash"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/unit"
	"github.com/FocuswithJustin/redline/internal/config"
	"github.com/FocuswithJustin/redline/internal/logging"
	"github.com/FocuswithJustin/redline/internal/validation"
)

const version = "0.1.0"

// CLI defines the command-line interface for redline.
var CLI struct {
	Compare CompareCmd `cmd:"" help:"Compare two documents and write tracked revisions"`
	Units   UnitsCmd   `cmd:"" help:"Print the comparison unit tree of a document"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// CompareCmd writes the comparison of two documents.
type CompareCmd struct {
	Before string `arg:"" help:"Original document (.docx, optionally xz-compressed)" type:"existingfile"`
	After  string `arg:"" help:"Revised document (.docx, optionally xz-compressed)" type:"existingfile"`
	Out    string `short:"o" required:"" help:"Output path, or - for stdout"`

	Config     string   `help:"TOML settings file" type:"path"`
	Author     string   `help:"Revision author"`
	Date       string   `help:"Revision date (RFC 3339)"`
	Threshold  *float64 `help:"Detail threshold between 0 and 1"`
	Hash       string   `help:"Digest algorithm (sha1, sha256, blake3)"`
	Separators string   `help:"Characters that form one-character words"`
	XZ         bool     `name:"xz" help:"Compress the output with xz"`
	LogLevel   string   `help:"Log level (debug, info, warn, error)"`
	LogFormat  string   `help:"Log format (text, json)"`
}

// settings loads the configuration and applies the flags over it.
func (c *CompareCmd) settings() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.Author != "" {
		cfg.Author = c.Author
	}
	if c.Date != "" {
		cfg.Date = c.Date
	}
	if c.Threshold != nil {
		cfg.DetailThreshold = *c.Threshold
	}
	if c.Hash != "" {
		cfg.HashAlgorithm = c.Hash
	}
	if c.Separators != "" {
		cfg.WordSeparators = c.Separators
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *CompareCmd) Run() error {
	cfg, err := c.settings()
	if err != nil {
		return err
	}
	if err := cfg.InitLogging(); err != nil {
		return err
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path %q: %w", c.Out, err)
	}
	logging.Debug("settings",
		"author", cfg.Author,
		"date", cfg.Date,
		"threshold", cfg.DetailThreshold,
		"hash", cfg.HashAlgorithm,
	)

	before, err := validation.ReadDocument(c.Before)
	if err != nil {
		return err
	}
	after, err := validation.ReadDocument(c.After)
	if err != nil {
		return err
	}

	s := cfg.Settings()
	s.Logger = logging.GetLogger()
	res, err := compare.CompareWithResult(before, after, s)
	if err != nil {
		return fmt.Errorf("compare %s with %s: %w", c.Before, c.After, err)
	}

	out := res.Document
	if c.XZ {
		if out, err = opc.CompressXZ(out); err != nil {
			return err
		}
	}
	if c.Out == "-" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if _, err := os.Stat(c.Out); err == nil {
		logging.Warn("overwriting existing file", "out", c.Out)
	}
	if err := os.WriteFile(c.Out, out, 0644); err != nil {
		return errors.NewIO("write", c.Out, err)
	}

	logging.Info("comparison written",
		"out", c.Out,
		"comparison_id", res.ComparisonID,
		"inserted", res.Inserted,
		"deleted", res.Deleted,
		"revisions", res.Revisions,
	)
	return nil
}

// UnitsCmd prints the grouped comparison units of one document.
type UnitsCmd struct {
	Path       string `arg:"" help:"Document to decompose" type:"existingfile"`
	Hash       string `help:"Digest algorithm (sha1, sha256, blake3)" default:"sha1"`
	Separators string `help:"Characters that form one-character words" default:" -"`
	Digests    bool   `help:"Show group digests"`
}

func (c *UnitsCmd) Run() error {
	return c.write(os.Stdout)
}

func (c *UnitsCmd) write(w io.Writer) error {
	alg, err := hash.ParseAlgorithm(c.Hash)
	if err != nil {
		return err
	}
	data, err := validation.ReadDocument(c.Path)
	if err != nil {
		return err
	}
	pkg, err := opc.Open(data)
	if err != nil {
		return err
	}
	units, err := unit.Decompose(pkg, unit.After, alg, c.Separators)
	if err != nil {
		return err
	}
	printUnits(w, units, 0, c.Digests)
	return nil
}

// printUnits writes one line per group and one line per run of words.
func printUnits(w io.Writer, units []unit.Unit, depth int, digests bool) {
	indent := strings.Repeat("  ", depth)
	var words []string
	flush := func() {
		if len(words) > 0 {
			fmt.Fprintf(w, "%s%s\n", indent, strings.Join(words, "|"))
			words = words[:0]
		}
	}
	for _, u := range units {
		g, ok := u.(*unit.Group)
		if !ok {
			words = append(words, unit.Text([]unit.Unit{u}))
			continue
		}
		flush()
		if digests {
			fmt.Fprintf(w, "%s%s %s\n", indent, g.Kind, shortDigest(g.Digest()))
		} else {
			fmt.Fprintf(w, "%s%s\n", indent, g.Kind)
		}
		printUnits(w, g.Children, depth+1, digests)
	}
	flush()
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("redline version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("redline"),
		kong.Description("Structural comparison of WordprocessingML documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
