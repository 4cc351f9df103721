package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/scorefix/internal/seed"
	"github.com/smartystreets/goconvey/convey"
)

const fixtureYAML = `
records:
  - key: "0xA8F4"
    wallet_address: "0xA8F4"
    score: 50
  - key: "0xa8f4"
    wallet_address: "0xa8f4"
    score: 120
  - key: "0xbeef"
    wallet_address: "0xbeef"
    score: 7
`

// conflictYAML has a wallet whose lowercase key already stores another
// wallet's record, so its group cannot be merged.
const conflictYAML = `
records:
  - key: "0xA8F4"
    wallet_address: "0xA8F4"
    score: 50
  - key: "0xA8f4"
    wallet_address: "0xA8f4"
    score: 70
  - key: "0xa8f4"
    wallet_address: "0xBEEF"
    score: 10
`

// execute runs a fresh root command and returns stdout.
func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFixture(dir string) string {
	return writeYAML(dir, "fixture.yaml", fixtureYAML)
}

func writeYAML(dir, name, body string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		panic(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it has metadata and the seed subcommand", func() {
			convey.So(root.Use, convey.ShouldEqual, "scorefix")
			convey.So(root.Short, convey.ShouldNotBeEmpty)
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["seed"], convey.ShouldBeTrue)
		})

		convey.Convey("Then it exposes the store and run flags", func() {
			for _, name := range []string{"config", "driver", "dsn", "table"} {
				convey.So(root.PersistentFlags().Lookup(name), convey.ShouldNotBeNil)
			}
			convey.So(root.Flags().Lookup("dry-run"), convey.ShouldNotBeNil)
			convey.So(root.Flags().Lookup("strict"), convey.ShouldNotBeNil)
		})
	})
}

func TestReconcileCommand(t *testing.T) {
	convey.Convey("Given a sqlite collection seeded from a fixture", t, func() {
		dir := t.TempDir()
		db := filepath.Join(dir, "scores.db")
		fixture := writeFixture(dir)

		out, err := execute("--driver", "sqlite", "--dsn", db, "seed", "--fixture", fixture)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldContainSubstring, "seeded 3 records")

		convey.Convey("When running a dry run", func() {
			out, err := execute("--driver", "sqlite", "--dsn", db, "--dry-run")

			convey.Convey("Then the plan is printed and a real run still has work", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Dry run: 1 merge(s) planned")

				out, err = execute("--driver", "sqlite", "--dsn", db)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Merges performed: 1")
			})
		})

		convey.Convey("When reconciling", func() {
			out, err := execute("--driver", "sqlite", "--dsn", db, "--strict")

			convey.Convey("Then the report shows the merge", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Total unique addresses: 2")
				convey.So(out, convey.ShouldContainSubstring, "Duplicates found: 1")
				convey.So(out, convey.ShouldContainSubstring, "Merges performed: 1")
				convey.So(out, convey.ShouldContainSubstring, "Cleanup completed.")
			})

			convey.Convey("Then a second run finds a clean collection", func() {
				out, err := execute("--driver", "sqlite", "--dsn", db)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "No duplicates found! Collection is clean.")
			})
		})
	})

	convey.Convey("Given the memory driver with a fixture", t, func() {
		fixture := writeFixture(t.TempDir())

		convey.Convey("When reconciling", func() {
			out, err := execute("--dsn", fixture)

			convey.Convey("Then the in-memory copy is merged", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Merges performed: 1")
			})
		})

		convey.Convey("When the config asks for a labelled metrics textfile", func() {
			dir := t.TempDir()
			prom := filepath.Join(dir, "scorefix.prom")
			cfgPath := writeYAML(dir, "scorefix.yaml",
				"metrics:\n  textfile: "+prom+"\n  labels:\n    env: ci\n")
			defer func() { _ = os.Unsetenv("SCOREFIX_CONFIG") }()

			_, err := execute("--config", cfgPath, "--dsn", fixture)

			convey.Convey("Then every exported series carries the label", func() {
				convey.So(err, convey.ShouldBeNil)
				data, readErr := os.ReadFile(prom)
				convey.So(readErr, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldContainSubstring, `scorefix_reconcile_groups_merged_total{env="ci"} 1`)
			})
		})
	})

	convey.Convey("Given a collection where a duplicate group cannot be merged", t, func() {
		fixture := writeYAML(t.TempDir(), "conflict.yaml", conflictYAML)

		convey.Convey("When reconciling without --strict", func() {
			out, err := execute("--dsn", fixture)

			convey.Convey("Then the run succeeds and reports the unfinished group", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Failed groups: 1")
				convey.So(out, convey.ShouldContainSubstring, "Cleanup incomplete: 0 of 1 duplicate groups merged.")
			})
		})

		convey.Convey("When reconciling with --strict", func() {
			out, err := execute("--dsn", fixture, "--strict")

			convey.Convey("Then the command fails after printing the report", func() {
				convey.So(errors.Is(err, errGroupsFailed), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "1 of 1")
				convey.So(out, convey.ShouldContainSubstring, "Failed groups: 1")
			})
		})

		convey.Convey("When strict mode comes from the config file", func() {
			dir := t.TempDir()
			cfgPath := writeYAML(dir, "scorefix.yaml", "fail_on_group_error: true\n")
			defer func() { _ = os.Unsetenv("SCOREFIX_CONFIG") }()

			_, err := execute("--config", cfgPath, "--dsn", fixture)

			convey.Convey("Then the command fails the same way", func() {
				convey.So(errors.Is(err, errGroupsFailed), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an unknown driver", t, func() {
		_, err := execute("--driver", "mongo")

		convey.Convey("Then the command fails", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a sqlite driver without a dsn", t, func() {
		_, err := execute("--driver", "sqlite")

		convey.Convey("Then the command fails validation", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "store.dsn")
		})
	})
}

func TestSeedCommand(t *testing.T) {
	convey.Convey("Given the seed command writing to a file", t, func() {
		path := filepath.Join(t.TempDir(), "generated.yaml")

		out, err := execute("seed", "--wallets", "5", "--duplicate-ratio", "0", "--out", path)

		convey.Convey("Then the generated fixture can be loaded back", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "wrote 5 records")
			recs, err := seed.LoadFile(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(recs), convey.ShouldEqual, 5)
		})
	})
}
