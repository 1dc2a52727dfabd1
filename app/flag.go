// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/moby/term"
	"github.com/spf13/pflag"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
)

// NamedFlagSets stores named flag sets in the order of calling FlagSet.
type NamedFlagSets struct {
	// Order is an ordered list of flag set names.
	Order []string
	// FlagSets stores the flag sets by name.
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set with the given name and adds it to the
// ordered name list if it is not in there yet.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}

	return nfs.FlagSets[name]
}

// PrintSections prints the given names flag sets in sections, with the
// maximal given column number. If cols is zero, lines are not wrapped.
func PrintSections(w io.Writer, fss NamedFlagSets, cols int) {
	for _, name := range fss.Order {
		fs := fss.FlagSets[name]
		if !fs.HasFlags() {
			continue
		}

		wideFS := pflag.NewFlagSet("", pflag.ExitOnError)
		wideFS.AddFlagSet(fs)

		var zzz string
		if cols > 24 {
			zzz = strings.Repeat("z", cols-24)
			wideFS.Int(zzz, 0, strings.Repeat("z", cols-24))
		}

		var buf bytes.Buffer
		fmt.Fprintf(&buf, "\n%s flags:\n\n%s", strings.ToUpper(name[:1])+name[1:], wideFS.FlagUsagesWrapped(cols))

		if cols > 24 {
			i := strings.Index(buf.String(), zzz)
			lines := strings.Split(buf.String()[:i], "\n")
			_, _ = fmt.Fprint(w, strings.Join(lines[:len(lines)-1], "\n"))
			_, _ = fmt.Fprintln(w)
		} else {
			_, _ = fmt.Fprint(w, buf.String())
		}
	}
}

// InitFlags normalizes the flags of fs, so "--a_b" is accepted as "--a-b".
func InitFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(wordSepNormalizeFunc)
}

func wordSepNormalizeFunc(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if strings.Contains(name, "_") {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	}

	return pflag.NormalizedName(name)
}

// PrintFlags logs the flags in the flagset.
func PrintFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		log.Debugf("FLAG: --%s=%q", f.Name, f.Value)
	})
}

// TerminalSize returns the current width and height of the user's terminal.
// If it isn't a terminal, an error is returned.
func TerminalSize(w io.Writer) (int, int, error) {
	fd, isTerm := term.GetFdInfo(w)
	if !isTerm {
		return 0, 0, errors.New("given writer is no terminal")
	}
	winsize, err := term.GetWinsize(fd)
	if err != nil {
		return 0, 0, err
	}

	return int(winsize.Width), int(winsize.Height), nil
}
