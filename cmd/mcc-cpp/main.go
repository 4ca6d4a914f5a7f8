// Command mcc-cpp runs the C preprocessing core as a standalone -E style
// tool, in the spirit of the full compiler's own "-E" frontend mode.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kukrimate/mcc/pkg/cpp"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	includePaths  []string
	systemPaths   []string
	defineFlags   []string
	undefineFlags []string
	outputPath    string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mcc-cpp [file]",
		Short:         "mcc-cpp is a standalone C99 preprocessor",
		Long:          `mcc-cpp runs macro expansion, conditional inclusion and file inclusion over a C source file and writes the resulting token stream.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doPreprocess(args[0], out, errOut)
		},
	}

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().BoolP("preprocess", "E", true, "Preprocess only (always on; kept for cc-compatible invocation)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to file instead of stdout")

	return rootCmd
}

func doPreprocess(filename string, out, errOut io.Writer) error {
	ctx, err := cpp.NewContext(cpp.Options{
		Defines:      defineFlags,
		Undefines:    undefineFlags,
		IncludePaths: includePaths,
		SystemPaths:  systemPaths,
	})
	if err != nil {
		fmt.Fprintf(errOut, "mcc-cpp: %v\n", err)
		return err
	}

	output, err := ctx.PreprocessFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "mcc-cpp: %v\n", err)
		return err
	}

	if outputPath == "" || outputPath == "-" {
		fmt.Fprintln(out, output)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(output+"\n"), 0644); err != nil {
		fmt.Fprintf(errOut, "mcc-cpp: writing %s: %v\n", outputPath, err)
		return err
	}
	return nil
}
