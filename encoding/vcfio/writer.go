// Package vcfio serializes structural-variant calls to a bgzf-compressed
// VCFv4.3 file with a tabix index, the format downstream tools consume.  The
// output is byte-stable for identical input: the header carries no
// timestamps and records are written in (chrom, start) order.
package vcfio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	htsbgzf "github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/tabix"
	"github.com/grailbio/sv"
	"github.com/grailbio/sv/encoding/bgzf"
)

// compressionLevel is the gzip level for both the data file and the index.
const compressionLevel = 6

// tabixFormatVCF is the htslib TBX_VCF format code.
const tabixFormatVCF = 2

// Contig names one reference sequence for the VCF header.  Length 0 omits
// the length attribute.
type Contig struct {
	Name   string
	Length int
}

// tabixRecord adapts one VCF record's coordinates to the tabix.Record
// interface.
type tabixRecord struct {
	name       string
	start, end int
}

func (r tabixRecord) RefName() string { return r.name }
func (r tabixRecord) Start() int      { return r.start }
func (r tabixRecord) End() int        { return r.end }

// toOffset splits a bgzf virtual offset into the hts representation.
func toOffset(voffset uint64) htsbgzf.Offset {
	return htsbgzf.Offset{File: int64(voffset >> 16), Block: uint16(voffset)}
}

// Write serializes calls to path as bgzf-compressed VCF and writes the tabix
// index to path+".tbi".  Calls are (re)sorted by (chrom, start); the input
// slice is not modified.  referenceBuild, if nonempty, is recorded in the
// header.  Any failure to create or write either file is returned as a hard
// error; the index is only written after the data file has been fully
// flushed, so a usable .vcf.gz never has a stale index next to it.
func Write(ctx context.Context, calls []sv.Call, path string, contigs []Contig, sampleName, referenceBuild string) error {
	sorted := make([]sv.Call, len(calls))
	copy(sorted, calls)
	sv.SortCalls(sorted)

	idx, err := writeData(ctx, sorted, path, contigs, sampleName, referenceBuild)
	if err != nil {
		return errors.E(err, "writing variant file:", path)
	}
	if err := writeIndex(ctx, path+".tbi", idx); err != nil {
		return errors.E(err, "writing tabix index for:", path)
	}
	return nil
}

func writeData(ctx context.Context, sorted []sv.Call, path string, contigs []Contig, sampleName, referenceBuild string) (idx *tabix.Index, err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, out, &err)

	bw, err := bgzf.NewWriter(out.Writer(ctx), compressionLevel)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := bw.Close(); e != nil && err == nil {
			err = e
		}
	}()

	if _, err = bw.Write([]byte(header(contigs, sampleName, referenceBuild))); err != nil {
		return nil, err
	}

	idx = tabix.New()
	idx.Format = tabixFormatVCF
	idx.NameColumn = 1
	idx.BeginColumn = 2
	idx.MetaChar = '#'
	var rec bytes.Buffer
	for i := range sorted {
		rec.Reset()
		writeRecord(&rec, &sorted[i], sampleName)
		begin := bw.VOffset()
		if _, err = bw.Write(rec.Bytes()); err != nil {
			return nil, err
		}
		end := sorted[i].End
		if sorted[i].Type == sv.BND {
			end = sorted[i].Start + 1
		}
		err = idx.Add(
			tabixRecord{name: sorted[i].Chrom, start: sorted[i].Start, end: end},
			htsbgzf.Chunk{Begin: toOffset(begin), End: toOffset(bw.VOffset())},
			true, true,
		)
		if err != nil {
			return nil, err
		}
		// Add assigns a fresh reference id to any name missing from IDs()
		// without recording it there; record it so later records on the
		// same chrom reuse the id instead of appending a duplicate ref.
		if _, ok := idx.IDs()[sorted[i].Chrom]; !ok {
			idx.IDs()[sorted[i].Chrom] = len(idx.Names()) - 1
		}
	}
	return idx, nil
}

func writeIndex(ctx context.Context, path string, idx *tabix.Index) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)

	// The .tbi container is itself bgzf.
	bw, err := bgzf.NewWriter(out.Writer(ctx), compressionLevel)
	if err != nil {
		return err
	}
	if err = tabix.WriteTo(bw, idx); err != nil {
		return err
	}
	return bw.Close()
}

// header renders the complete VCF header.  Contigs are emitted in name
// order, matching the record sort.
func header(contigs []Contig, sampleName, referenceBuild string) string {
	sortedContigs := make([]Contig, len(contigs))
	copy(sortedContigs, contigs)
	sort.Slice(sortedContigs, func(i, j int) bool { return sortedContigs[i].Name < sortedContigs[j].Name })

	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.3\n")
	b.WriteString("##source=bio-sv-call\n")
	if referenceBuild != "" {
		b.WriteString("##reference=" + referenceBuild + "\n")
	}
	for _, c := range sortedContigs {
		if c.Length > 0 {
			fmt.Fprintf(&b, "##contig=<ID=%s,length=%d>\n", c.Name, c.Length)
		} else {
			fmt.Fprintf(&b, "##contig=<ID=%s>\n", c.Name)
		}
	}
	b.WriteString(`##ALT=<ID=DEL,Description="Deletion">
##ALT=<ID=DUP,Description="Duplication">
##ALT=<ID=INV,Description="Inversion">
##ALT=<ID=INS,Description="Insertion of novel sequence">
##FILTER=<ID=LowQual,Description="Quality below threshold">
##FILTER=<ID=LowSupport,Description="Insufficient paired-end or split-read support">
##INFO=<ID=SVTYPE,Number=1,Type=String,Description="Type of structural variant">
##INFO=<ID=SVLEN,Number=1,Type=Integer,Description="Signed difference in length between REF and ALT alleles">
##INFO=<ID=END,Number=1,Type=Integer,Description="End position of the variant">
##INFO=<ID=CIPOS,Number=2,Type=Integer,Description="Confidence interval around POS">
##INFO=<ID=CIEND,Number=2,Type=Integer,Description="Confidence interval around END">
##INFO=<ID=PE,Number=1,Type=Integer,Description="Number of supporting discordant read pairs">
##INFO=<ID=SR,Number=1,Type=Integer,Description="Number of supporting split reads">
##INFO=<ID=RD,Number=1,Type=Float,Description="Read depth relative to the sample mean over the variant">
##INFO=<ID=MATEID,Number=1,Type=String,Description="ID of mate breakend">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
`)
	if sampleName == "" {
		sampleName = "SAMPLE"
	}
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t" + sampleName + "\n")
	return b.String()
}

// writeRecord renders one call as a VCF data line.  Positions go out
// 1-based; END stays equal to the 0-based half-open end, which is the
// 1-based inclusive end.
func writeRecord(b *bytes.Buffer, c *sv.Call, sampleName string) {
	b.WriteString(c.Chrom)
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(c.Start + 1))
	b.WriteByte('\t')
	b.WriteString(c.ID)
	b.WriteString("\tN\t")
	if c.Type == sv.BND {
		fmt.Fprintf(b, "N]%s:%d]", c.MateChrom, c.MatePos+1)
	} else {
		b.WriteByte('<')
		b.WriteString(c.Type.String())
		b.WriteByte('>')
	}
	b.WriteByte('\t')
	b.WriteString(strconv.FormatFloat(c.Quality, 'f', 1, 64))
	b.WriteByte('\t')
	b.WriteString(c.Filter)
	b.WriteByte('\t')

	info := make([]string, 0, 8)
	info = append(info, "SVTYPE="+c.Type.String())
	if c.Type != sv.BND {
		info = append(info,
			"SVLEN="+strconv.Itoa(c.Len),
			"END="+strconv.Itoa(c.End))
	}
	info = append(info,
		fmt.Sprintf("CIPOS=%d,%d", c.CIPos.Lo, c.CIPos.Hi),
		fmt.Sprintf("CIEND=%d,%d", c.CIEnd.Lo, c.CIEnd.Hi))
	if c.PESupport > 0 {
		info = append(info, "PE="+strconv.Itoa(c.PESupport))
	}
	if c.SRSupport > 0 {
		info = append(info, "SR="+strconv.Itoa(c.SRSupport))
	}
	if c.RelativeDepth > 0 {
		info = append(info, "RD="+strconv.FormatFloat(c.RelativeDepth, 'f', 4, 64))
	}
	b.WriteString(strings.Join(info, ";"))

	b.WriteString("\tGT:GQ\t")
	b.WriteString(c.Genotype)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(int(math.Round(math.Min(c.Quality, 99)))))
	b.WriteByte('\n')
}
