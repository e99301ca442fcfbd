// Package cli contains the Cobra commands of the atomicid binary.
package cli

import (
	"fmt"
	"text/tabwriter"

	"atomic_server/pkg/atomicid"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// NewRoot constructs the root command with the gen, batch, seq and layout
// subcommands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "atomicid",
		Short:         "Generate time-ordered unique IDs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("width", "w", "64", "ID width: 24, 32, 64, 128 or 256")
	root.PersistentFlags().StringP("enc", "e", "base36", "Encoding: base36, base58, base91 or hex")
	root.PersistentFlags().Int("node", atomicid.DefaultNodeID, "Node id (0-4095)")
	root.PersistentFlags().Int("shard", atomicid.DefaultShardID, "Shard id (0-255)")
	root.PersistentFlags().Int64("epoch", atomicid.DefaultEpoch, "Epoch in Unix milliseconds")

	root.AddCommand(
		newGenCommand(),
		newBatchCommand(),
		newSeqCommand(),
		newLayoutCommand(),
	)
	return root
}

// options are the persistent flags resolved against a private topology.
type options struct {
	width atomicid.Width
	enc   atomicid.Encoding
	gen   *atomicid.Generator
}

func resolve(cmd *cobra.Command) (*options, error) {
	flags := cmd.Flags()
	rawWidth, _ := flags.GetString("width")
	rawEnc, _ := flags.GetString("enc")
	node, _ := flags.GetInt("node")
	shard, _ := flags.GetInt("shard")
	epoch, _ := flags.GetInt64("epoch")

	width, err := atomicid.ParseWidth(rawWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid --width: %w", err)
	}
	enc, err := atomicid.ParseEncoding(rawEnc)
	if err != nil {
		return nil, fmt.Errorf("invalid --enc: %w", err)
	}

	topo := atomicid.NewTopology()
	if err := topo.SetNodeID(node); err != nil {
		return nil, fmt.Errorf("invalid --node: %w", err)
	}
	if err := topo.SetShardID(shard); err != nil {
		return nil, fmt.Errorf("invalid --shard: %w", err)
	}
	topo.SetEpoch(epoch)

	return &options{
		width: width,
		enc:   enc,
		gen:   atomicid.NewGenerator(atomicid.Config{Topology: topo, PoolSize: 1}),
	}, nil
}

func newGenCommand() *cobra.Command {
	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate one ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := resolve(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetBool("raw")

			s := opts.gen.NewSession()
			defer s.Close()
			id := s.Generate(opts.width)
			if !raw {
				fmt.Fprintln(cmd.OutOrStdout(), id.Encode(opts.enc))
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"id":     id.Encode(opts.enc),
				"hex":    id.String(),
				"fields": id.Fields(),
				"time":   id.Time(opts.gen.Topology().Epoch()),
			})
		},
	}
	genCmd.Flags().Bool("raw", false, "Print the decoded fields as JSON")
	return genCmd
}

func newBatchCommand() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate a batch of IDs, one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := resolve(cmd)
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}

			s := opts.gen.NewSession()
			defer s.Close()
			out := cmd.OutOrStdout()
			for _, id := range s.NextBatch(opts.width, opts.enc, count) {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
	batchCmd.Flags().IntP("count", "n", 10, "Number of IDs")
	return batchCmd
}

func newSeqCommand() *cobra.Command {
	seqCmd := &cobra.Command{
		Use:   "seq",
		Short: "Print sequential 64-bit IDs starting at zero",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := resolve(cmd)
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}

			out := cmd.OutOrStdout()
			for _, id := range opts.gen.SequentialBatch(count) {
				fmt.Fprintln(out, id.Encode(opts.enc))
			}
			return nil
		},
	}
	seqCmd.Flags().IntP("count", "n", 1, "Number of IDs")
	return seqCmd
}

func newLayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the bit layout and string lengths of every width",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WIDTH\tTS\tNODE\tSHARD\tTHREAD\tSEQ\tENTROPY\tB36\tB58\tB91\tHEX")
			for _, w := range atomicid.Widths {
				l := w.Layout()
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
					int(w), l.TimestampBits, l.NodeBits, l.ShardBits, l.ThreadBits, l.SequenceBits, l.EntropyBits,
					atomicid.FixedLength(w, atomicid.Base36),
					atomicid.FixedLength(w, atomicid.Base58),
					atomicid.FixedLength(w, atomicid.Base91),
					atomicid.FixedLength(w, atomicid.Hex))
			}
			return tw.Flush()
		},
	}
}
