// Copyright 2014 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/latticegraph/gstore/clog"
	"github.com/latticegraph/gstore/internal/node"
	"github.com/latticegraph/gstore/loader"
	"github.com/latticegraph/gstore/transport/rdma"
)

// registerLoadFlags attaches the bulk-load input flags shared by "load" and
// "verify". They are read directly off cmd.Flags() rather than through
// viper, since both commands share these flag names and a global viper
// binding would let whichever command is constructed last win for both.
func registerLoadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("spo", "", "sorted (s,p,o) triple stream to bulk-load")
	f.String("ops", "", "sorted (o,p,s) triple stream to bulk-load")
	f.String("attrs", "", "sorted (s,a,v,tag) attribute stream to bulk-load")
}

// NewLoadCmd builds the command that bulk-loads the two sorted triple
// streams of spec section 4.4 Phase A (and optionally an attribute stream)
// into a freshly opened, empty shard.
func NewLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Bulk-load sorted triple streams into a shard.",
		RunE: func(cmd *cobra.Command, args []string) error {
			spoPath, _ := cmd.Flags().GetString("spo")
			opsPath, _ := cmd.Flags().GetString("ops")
			if spoPath == "" || opsPath == "" {
				return errors.New("gstored load: --spo and --ops are both required")
			}
			attrPath, _ := cmd.Flags().GetString("attrs")

			cfg, err := configFromViper(cmd)
			if err != nil {
				return err
			}
			self := viper.GetInt(KeySelf)

			n, err := node.Open(cfg, self, rdma.NewLocalFabric(self))
			if err != nil {
				return fmt.Errorf("gstored load: open node: %w", err)
			}
			defer n.Close()

			spo, err := os.Open(spoPath)
			if err != nil {
				return err
			}
			defer spo.Close()
			ops, err := os.Open(opsPath)
			if err != nil {
				return err
			}
			defer ops.Close()

			var attrsReader io.Reader
			if attrPath != "" {
				attrs, err := os.Open(attrPath)
				if err != nil {
					return err
				}
				defer attrs.Close()
				attrsReader = attrs
			}

			stats, err := loader.LoadFiles(cmd.Context(), n.Mapper, spo, ops, attrsReader, cfg.NumEngines)
			if err != nil {
				return fmt.Errorf("gstored load: %w", err)
			}

			if n.Dyn != nil {
				n.Dyn.MergeFreelists()
			}

			clog.Infof("gstored load: %d out-keys, %d in-keys, %d versatile entries, %d attributes",
				stats.OutKeys, stats.InKeys, stats.Versatile, stats.Attributes)
			return nil
		},
	}
	registerLoadFlags(cmd)
	return cmd
}

