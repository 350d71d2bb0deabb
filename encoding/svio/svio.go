// Package svio reads the tab-separated artifacts the caller's external
// collaborators produce: per-contig depth-bin counts, contig lengths,
// discordant read pairs, and split reads.  Files may be plain text or gzip
// (detected from the path, as in BED loading).  Lines starting with '#' are
// comments.
package svio

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/sv"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// forEachLine opens path, decompresses if needed, and invokes fn for every
// non-comment, non-empty line with its whitespace-split fields.
func forEachLine(ctx context.Context, path string, fn func(lineNum int, fields []string) error) (err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var gz *gzip.Reader
	defer func() {
		if gz != nil {
			if cerr := gz.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		reader = gz
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err = fn(lineNum, strings.Fields(line)); err != nil {
			return
		}
	}
	return scanner.Err()
}

// ReadDepthBins loads `contig  binIndex  count` triples into dense
// per-contig arrays.  Indices may be sparse; unmentioned bins are zero.
func ReadDepthBins(ctx context.Context, path string) (map[string][]int, error) {
	bins := map[string][]int{}
	err := forEachLine(ctx, path, func(lineNum int, fields []string) error {
		if len(fields) != 3 {
			return errors.Errorf("%s:%d: depth-bin line needs 3 fields, has %d", path, lineNum, len(fields))
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil || idx < 0 {
			return errors.Errorf("%s:%d: bad bin index %q", path, lineNum, fields[1])
		}
		count, err := strconv.Atoi(fields[2])
		if err != nil || count < 0 {
			return errors.Errorf("%s:%d: bad bin count %q", path, lineNum, fields[2])
		}
		contig := fields[0]
		arr := bins[contig]
		for len(arr) <= idx {
			arr = append(arr, 0)
		}
		arr[idx] = count
		bins[contig] = arr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bins, nil
}

// ReadContigLengths loads a two-column `contig  length` file (the
// .chrom.sizes convention).
func ReadContigLengths(ctx context.Context, path string) (map[string]int, error) {
	lengths := map[string]int{}
	err := forEachLine(ctx, path, func(lineNum int, fields []string) error {
		if len(fields) != 2 {
			return errors.Errorf("%s:%d: contig-length line needs 2 fields, has %d", path, lineNum, len(fields))
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return errors.Errorf("%s:%d: bad contig length %q", path, lineNum, fields[1])
		}
		lengths[fields[0]] = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lengths, nil
}

func parseStrand(s string) (byte, bool) {
	if s == "+" || s == "-" {
		return s[0], true
	}
	return 0, false
}

func parseReason(s string) (sv.PairReason, bool) {
	switch s {
	case "insert_size":
		return sv.InsertSizeOutlier, true
	case "orientation":
		return sv.WrongOrientation, true
	case "inter_chrom":
		return sv.InterChromosomal, true
	}
	return 0, false
}

// ReadDiscordantPairs loads `chrom1 pos1 strand1 chrom2 pos2 strand2
// insertSize mapq reason` rows.  Positions are 0-based.
func ReadDiscordantPairs(ctx context.Context, path string) ([]sv.DiscordantPair, error) {
	var pairs []sv.DiscordantPair
	err := forEachLine(ctx, path, func(lineNum int, fields []string) error {
		if len(fields) != 9 {
			return errors.Errorf("%s:%d: discordant-pair line needs 9 fields, has %d", path, lineNum, len(fields))
		}
		var p sv.DiscordantPair
		var ok bool
		p.Chrom1 = fields[0]
		p.Chrom2 = fields[3]
		var err error
		if p.Pos1, err = strconv.Atoi(fields[1]); err != nil {
			return errors.Errorf("%s:%d: bad position %q", path, lineNum, fields[1])
		}
		if p.Pos2, err = strconv.Atoi(fields[4]); err != nil {
			return errors.Errorf("%s:%d: bad position %q", path, lineNum, fields[4])
		}
		if p.Strand1, ok = parseStrand(fields[2]); !ok {
			return errors.Errorf("%s:%d: bad strand %q", path, lineNum, fields[2])
		}
		if p.Strand2, ok = parseStrand(fields[5]); !ok {
			return errors.Errorf("%s:%d: bad strand %q", path, lineNum, fields[5])
		}
		if p.InsertSize, err = strconv.Atoi(fields[6]); err != nil {
			return errors.Errorf("%s:%d: bad insert size %q", path, lineNum, fields[6])
		}
		mapq, err := strconv.Atoi(fields[7])
		if err != nil || mapq < 0 || mapq > 255 {
			return errors.Errorf("%s:%d: bad mapq %q", path, lineNum, fields[7])
		}
		p.MapQ = byte(mapq)
		if p.Reason, ok = parseReason(fields[8]); !ok {
			return errors.Errorf("%s:%d: bad discordance reason %q", path, lineNum, fields[8])
		}
		pairs = append(pairs, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// ReadSplitReads loads `chrom pos strand mateChrom matePos mateStrand mapq`
// rows.  Positions are 0-based.
func ReadSplitReads(ctx context.Context, path string) ([]sv.SplitRead, error) {
	var splits []sv.SplitRead
	err := forEachLine(ctx, path, func(lineNum int, fields []string) error {
		if len(fields) != 7 {
			return errors.Errorf("%s:%d: split-read line needs 7 fields, has %d", path, lineNum, len(fields))
		}
		var s sv.SplitRead
		var ok bool
		s.Chrom = fields[0]
		s.MateChrom = fields[3]
		var err error
		if s.Pos, err = strconv.Atoi(fields[1]); err != nil {
			return errors.Errorf("%s:%d: bad position %q", path, lineNum, fields[1])
		}
		if s.MatePos, err = strconv.Atoi(fields[4]); err != nil {
			return errors.Errorf("%s:%d: bad position %q", path, lineNum, fields[4])
		}
		if s.Strand, ok = parseStrand(fields[2]); !ok {
			return errors.Errorf("%s:%d: bad strand %q", path, lineNum, fields[2])
		}
		if s.MateStrand, ok = parseStrand(fields[5]); !ok {
			return errors.Errorf("%s:%d: bad strand %q", path, lineNum, fields[5])
		}
		mapq, err := strconv.Atoi(fields[6])
		if err != nil || mapq < 0 || mapq > 255 {
			return errors.Errorf("%s:%d: bad mapq %q", path, lineNum, fields[6])
		}
		s.MapQ = byte(mapq)
		splits = append(splits, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splits, nil
}
