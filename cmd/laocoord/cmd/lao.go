package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cmdcommon "github.com/laonet/laocoord/cmd/laocoord/common"
	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/lao"
)

var (
	laoCmd       *cobra.Command
	laoInfoCmd   *cobra.Command
	laoCreateCmd *cobra.Command

	flagLaoRoster    string = common.GetENVValue("LAOCOORD_ROSTER", "")
	flagLaoFormat    string = "yaml"
	flagLaoName      string
	flagLaoOrganizer string
	flagLaoCreation  int64
	flagLaoWitnesses []string
)

type laoInfo struct {
	ID               string          `json:"id" yaml:"id"`
	Name             string          `json:"name" yaml:"name"`
	Organizer        string          `json:"organizer" yaml:"organizer"`
	Witnesses        []string        `json:"witnesses" yaml:"witnesses"`
	Creation         int64           `json:"creation" yaml:"creation"`
	Channel          channel.Channel `json:"channel" yaml:"channel"`
	ConsensusChannel channel.Channel `json:"consensus_channel" yaml:"consensus_channel"`
}

func init() {
	laoCmd = &cobra.Command{
		Use:   "lao",
		Short: "Organization roster",
		Run: func(c *cobra.Command, args []string) {
			if len(args) < 1 {
				c.Usage()
			}
		},
	}

	laoInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print the organizations of a roster with their ids and channels",
		Run: func(c *cobra.Command, args []string) {
			encode, ok := cmdcommon.DefaultEncodes[flagLaoFormat]
			if !ok {
				cmdcommon.PrintFlagsError(c, "--format", fmt.Errorf("%q not recognized", flagLaoFormat))
			}

			registry, err := lao.LoadRegistryFromFile(flagLaoRoster)
			if err != nil {
				cmdcommon.PrintFlagsError(c, "--roster", err)
			}

			if err := encode(laoInfos(registry), os.Stdout); err != nil {
				cmdcommon.PrintError(c, err)
			}
		},
	}
	laoInfoCmd.Flags().StringVar(&flagLaoRoster, "roster", flagLaoRoster, "roster file")
	laoInfoCmd.Flags().StringVar(&flagLaoFormat, "format", flagLaoFormat, "format={yaml, json, prettyjson}")

	laoCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Print a roster with a new organization",
		Run: func(c *cobra.Command, args []string) {
			creation := flagLaoCreation
			if creation < 1 {
				creation = time.Now().Unix()
			}

			b, err := createRoster(flagLaoRoster, flagLaoName, flagLaoOrganizer, creation, flagLaoWitnesses)
			if err != nil {
				cmdcommon.PrintError(c, err)
			}

			os.Stdout.Write(b)
		},
	}
	laoCreateCmd.Flags().StringVar(&flagLaoRoster, "roster", flagLaoRoster, "roster file the organization is added to")
	laoCreateCmd.Flags().StringVar(&flagLaoName, "name", "", "name of the organization")
	laoCreateCmd.Flags().StringVar(&flagLaoOrganizer, "organizer", "", "public key of the organizer")
	laoCreateCmd.Flags().Int64Var(&flagLaoCreation, "creation", 0, "creation time in unix seconds; now by default")
	laoCreateCmd.Flags().StringSliceVar(&flagLaoWitnesses, "witness", nil, "public key of a witness")
	laoCreateCmd.MarkFlagRequired("name")
	laoCreateCmd.MarkFlagRequired("organizer")

	laoCmd.AddCommand(laoInfoCmd, laoCreateCmd)
	rootCmd.AddCommand(laoCmd)
}

func laoInfos(registry *lao.Registry) []laoInfo {
	var infos []laoInfo
	for _, o := range registry.All() {
		infos = append(infos, laoInfo{
			ID:               o.ID,
			Name:             o.Name,
			Organizer:        o.Organizer,
			Witnesses:        o.Witnesses,
			Creation:         o.Creation,
			Channel:          o.Channel(),
			ConsensusChannel: o.ConsensusChannel(),
		})
	}

	return infos
}

// createRoster adds a new organization to the roster at path, or to an
// empty one when path is empty.
func createRoster(path, name, organizer string, creation int64, witnesses []string) ([]byte, error) {
	registry := lao.NewRegistry()
	if len(path) > 0 {
		var err error
		if registry, err = lao.LoadRegistryFromFile(path); err != nil {
			return nil, err
		}
	}

	o, err := lao.NewOrganization(name, organizer, creation, witnesses)
	if err != nil {
		return nil, err
	}
	if err := registry.Add(o); err != nil {
		return nil, err
	}

	return lao.MarshalRoster(registry.All())
}
