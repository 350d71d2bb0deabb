package main

/*
bio-sv-call detects structural variants in one aligned sample from two
independent evidence channels: binned read-depth anomalies and
discordant-pair/split-read breakpoint signatures.  The inputs are the TSV
artifacts of the upstream depth scanner and evidence extractor; the output is
a bgzf-compressed VCF plus tabix index.
*/

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/sv"
	"github.com/grailbio/sv/encoding/svio"
	"github.com/grailbio/sv/encoding/vcfio"
)

var (
	depthPath  = flag.String("depth", "", "Input depth-bin TSV (contig, bin index, read count); required")
	sizesPath  = flag.String("sizes", "", "Contig-length file (contig, length); contigs absent here fall back to bins*bin-size")
	pairsPath  = flag.String("pairs", "", "Discordant-pair TSV from the evidence extractor")
	splitsPath = flag.String("splits", "", "Split-read TSV from the evidence extractor")

	coverage   = flag.Float64("coverage", 0, "Sample-wide mean coverage; required")
	readLength = flag.Float64("read-length", 150, "Mean read length in bases")
	insertSize = flag.Int("insert-size", sv.DefaultOpts.MeanInsertSize, "Expected library insert size")

	binSize        = flag.Int("bin-size", sv.DefaultOpts.BinSize, "Depth window width in bases")
	minZ           = flag.Float64("min-z", sv.DefaultOpts.MinDepthZScore, "Minimum |z| to open a depth segment")
	minCnvSize     = flag.Int("min-cnv-size", sv.DefaultOpts.MinCnvSize, "Minimum depth-segment length in bases")
	maxClusterDist = flag.Int("max-cluster-dist", sv.DefaultOpts.MaxClusterDistance, "Greedy clustering distance in bases")
	minSupport     = flag.Int("min-support", sv.DefaultOpts.MinTotalSupport, "Minimum pairs+splits per breakpoint cluster")
	minPE          = flag.Int("min-pe", sv.DefaultOpts.MinPairedEndSupport, "Paired-end support needed for PASS")
	minSR          = flag.Int("min-sr", sv.DefaultOpts.MinSplitReadSupport, "Split-read support needed for PASS")
	minQual        = flag.Float64("min-qual", sv.DefaultOpts.MinQuality, "Quality needed for PASS on depth-only calls")

	sampleName = flag.String("sample", "SAMPLE", "Sample name for the VCF header")
	refBuild   = flag.String("reference", "", "Reference build recorded in the VCF header")
	outPath    = flag.String("out", "", "Output .vcf.gz path (index written alongside); required")
)

func bioSvCallUsage() {
	fmt.Printf("Usage: %s -depth depth.tsv -coverage 30 -out calls.vcf.gz [OPTIONS]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioSvCallUsage
	shutdown := grail.Init()
	defer shutdown()

	if *depthPath == "" || *outPath == "" {
		log.Fatalf("-depth and -out are required; run with -help for usage")
	}
	if *coverage <= 0 {
		log.Fatalf("-coverage must be positive")
	}
	ctx := vcontext.Background()

	bins, err := svio.ReadDepthBins(ctx, *depthPath)
	if err != nil {
		log.Fatalf("reading %s: %v", *depthPath, err)
	}
	lengths := map[string]int{}
	if *sizesPath != "" {
		if lengths, err = svio.ReadContigLengths(ctx, *sizesPath); err != nil {
			log.Fatalf("reading %s: %v", *sizesPath, err)
		}
	}
	var ev sv.Evidence
	if *pairsPath != "" {
		pairs, err := svio.ReadDiscordantPairs(ctx, *pairsPath)
		if err != nil {
			log.Fatalf("reading %s: %v", *pairsPath, err)
		}
		for _, p := range pairs {
			ev.AddPair(p)
		}
	}
	if *splitsPath != "" {
		splits, err := svio.ReadSplitReads(ctx, *splitsPath)
		if err != nil {
			log.Fatalf("reading %s: %v", *splitsPath, err)
		}
		for _, s := range splits {
			ev.AddSplit(s)
		}
	}

	opts := sv.Opts{
		BinSize:             *binSize,
		MinDepthZScore:      *minZ,
		MinCnvSize:          *minCnvSize,
		MaxClusterDistance:  *maxClusterDist,
		MinTotalSupport:     *minSupport,
		MinPairedEndSupport: *minPE,
		MinSplitReadSupport: *minSR,
		MinQuality:          *minQual,
		MeanInsertSize:      *insertSize,
	}
	in := sv.Input{
		DepthBins:     bins,
		ContigLengths: lengths,
		MeanCoverage:  *coverage,
		ReadLength:    *readLength,
		Evidence:      ev,
	}
	calls, stats, err := sv.CallSVs(ctx, in, opts)
	if err != nil {
		log.Fatalf("calling: %v", err)
	}
	if err := vcfio.Write(ctx, calls, *outPath, contigList(bins, lengths, opts.BinSize), *sampleName, *refBuild); err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("bio-sv-call: scanned %d bins on %d contigs, %d depth segments", stats.Bins, stats.Contigs, stats.DepthSegments)
	log.Printf("bio-sv-call: wrote %d calls to %s (%d PASS, %d filtered, %d depth-only)",
		stats.Pass+stats.Filtered, *outPath, stats.Pass, stats.Filtered, stats.DepthOnlyCalls)
	for t := sv.DEL; t < sv.NumTypes; t++ {
		if stats.Calls[t] > 0 {
			log.Printf("bio-sv-call:   %s: %d", t, stats.Calls[t])
		}
	}
}

// contigList assembles the VCF header contigs: every contig with a known
// length, plus depth-scanned contigs whose length falls back to bins*binSize.
func contigList(bins map[string][]int, lengths map[string]int, binSize int) []vcfio.Contig {
	byName := map[string]int{}
	for name, n := range lengths {
		byName[name] = n
	}
	for name, b := range bins {
		if _, ok := byName[name]; !ok {
			byName[name] = len(b) * binSize
		}
	}
	contigs := make([]vcfio.Contig, 0, len(byName))
	for name, n := range byName {
		contigs = append(contigs, vcfio.Contig{Name: name, Length: n})
	}
	sort.Slice(contigs, func(i, j int) bool { return contigs[i].Name < contigs[j].Name })
	return contigs
}
