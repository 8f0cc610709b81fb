package key

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/laonet/laocoord/cmd/laocoord/common"
	"github.com/laonet/laocoord/lib/common/keypair"
)

var (
	GenerateCmd *cobra.Command

	flagParse  bool
	flagFormat string
)

type keyPair struct {
	Seed      string `json:"seed" yaml:"seed"`
	PublicKey string `json:"public_key" yaml:"public_key"`
}

var defaultTemplate = template.Must(template.New("").Parse(`Secret Seed: {{ .Seed }}
 Public Key: {{ .PublicKey }}
`))

func defaultEncode(v interface{}, w io.Writer) error {
	return defaultTemplate.Execute(w, v)
}

func onelineEncode(v interface{}, w io.Writer) error {
	kp := v.(keyPair)
	_, err := fmt.Fprintf(w, "%s %s\n", kp.Seed, kp.PublicKey)
	return err
}

var encoders = map[string]common.Encode{
	"json":       common.DefaultEncodes["json"],
	"prettyjson": common.DefaultEncodes["prettyjson"],
	"yaml":       common.DefaultEncodes["yaml"],
	"default":    defaultEncode,
	"oneline":    onelineEncode,
}

func init() {
	GenerateCmd = &cobra.Command{
		Use:   "generate [<secret seed>]",
		Short: "Generate keypair",
		Run: func(c *cobra.Command, args []string) {
			input := strings.TrimSpace(strings.Join(args, " "))
			if flagParse && len(input) < 1 {
				common.PrintFlagsError(c, "--parse", errors.New("--parse needs <secret seed>"))
			}

			encode, ok := encoders[flagFormat]
			if !ok {
				common.PrintFlagsError(c, "--format", fmt.Errorf("%q not recognized", flagFormat))
			}

			kp, err := generateKP(input, flagParse)
			if err != nil {
				common.PrintFlagsError(c, "<secret seed>", fmt.Errorf("failed to parse secret seed: %v", err))
			}

			if err := encode(keyPair{Seed: kp.Seed(), PublicKey: kp.PublicKey()}, os.Stdout); err != nil {
				common.PrintError(c, err)
			}
		},
	}

	GenerateCmd.Flags().BoolVar(&flagParse, "parse", false, "parse secret seed")
	GenerateCmd.Flags().StringVar(&flagFormat, "format", "default", "format={default, json, oneline, prettyjson, yaml}")
}

func generateKP(seed string, parse bool) (*keypair.KeypairSigner, error) {
	if parse {
		return keypair.NewSignerFromSeed(seed)
	}

	full, err := keypair.RandomCanFail()
	if err != nil {
		return nil, err
	}

	return keypair.NewSigner(full), nil
}
