package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/approval"
	"gopkg.in/yaml.v3"
)

type app struct {
	viper      *viper.Viper
	configFile string
	service    *approval.Service
}

func newRootCmd() *cobra.Command {
	a := &app{viper: viper.New()}
	root := &cobra.Command{
		Use:           "approvalctl",
		Short:         "Operate approval workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (yaml or json)")
	root.AddCommand(
		newDefinitionCmd(a),
		newDocumentCmd(a),
		newInstanceCmd(a),
		newTasksCmd(a),
		newSweepCmd(a),
		newServeCmd(a),
	)
	return root
}

// engine lazily creates the engine so that commands like definition validate
// do not open stores.
func (a *app) engine(ctx context.Context) (*approval.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	config, err := loadConfig(a.viper, a.configFile)
	if err != nil {
		return nil, err
	}
	srv, err := approval.New(ctx, approval.WithConfig(config))
	if err != nil {
		return nil, err
	}
	a.service = srv
	return srv, nil
}

func (a *app) close(ctx context.Context) error {
	if a.service == nil {
		return nil
	}
	err := a.service.Runtime().Shutdown(ctx)
	a.service = nil
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseAssignments converts key=value pairs; values are decoded as YAML
// scalars so numbers and booleans keep their type.
func parseAssignments(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ret := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		ret[key] = value
	}
	return ret, nil
}
