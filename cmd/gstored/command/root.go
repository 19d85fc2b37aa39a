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

// Package command builds the gstored cobra command tree: serve, load,
// verify, version, structured the way cayley's cmd/cayley/command package
// builds init/load/dump/http/repl.
package command

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the gstored root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gstored",
		Short: "gstore shard process: serve, bulk-load, and verify a distributed graph store shard.",
	}
	root.PersistentFlags().String("config", "", "path to a JSON config file")
	viper.BindPFlag(KeyConfig, root.PersistentFlags().Lookup("config"))
	viper.SetEnvPrefix("GSTORED")
	viper.AutomaticEnv()

	// Registered once on root, not per subcommand: cobra persistent flags
	// cascade down to every child command, and a single registration keeps
	// each viper key bound to exactly one pflag.Flag.
	registerStoreFlags(root)

	root.AddCommand(NewServeCmd(), NewLoadCmd(), NewVerifyCmd(), NewVersionCmd())
	return root
}
