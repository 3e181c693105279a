/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/inflowgen/filter"
)

// KernelCmd represents the kernel command
var KernelCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Print the coefficients and autocorrelation of a filter kernel",
	Long: `
Prints the normalized filter coefficients b(k), k = -NL..NL, and the correlation
r(m) = sum b(k) b(k+m) they impose on the filtered noise,

inflowgen kernel --shape gaussian --n 4 --nfk 2`,
	Run: func(cmd *cobra.Command, args []string) {
		shape, _ := cmd.Flags().GetString("shape")
		n, _ := cmd.Flags().GetInt("n")
		nfK, _ := cmd.Flags().GetInt("nfk")
		if err := PrintKernel(os.Stdout, shape, n, nfK); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(KernelCmd)
	KernelCmd.Flags().StringP("shape", "s", "gaussian", "kernel shape: "+strings.Join(filter.ShapeNames(), ", "))
	KernelCmd.Flags().IntP("n", "n", 4, "length scale in lattice spacings")
	KernelCmd.Flags().Int("nfk", 2, "half width of the kernel in length scales")
}

func PrintKernel(w io.Writer, shape string, n, nfK int) (err error) {
	var kn *filter.Kernel
	if kn, err = filter.NewKernel(shape, n, nfK); err != nil {
		return
	}
	fmt.Fprintf(w, "[%s]\t= Shape\n", kn.Shape)
	fmt.Fprintf(w, "[%d]\t\t= n\n", kn.N)
	fmt.Fprintf(w, "[%d]\t\t= NL\n", kn.NL)
	fmt.Fprintf(w, "[%8.5f]\t= Decay width, r(n) = 1/e\n", kn.Decay)
	fmt.Fprintf(w, "%5s %14s %14s\n", "k", "b(k)", "r(k)")
	for k := -kn.NL; k <= kn.NL; k++ {
		m := k
		if m < 0 {
			m = -m
		}
		fmt.Fprintf(w, "%5d %14.8f %14.8f\n", k, kn.At(k), kn.Autocorrelation(m))
	}
	return
}
