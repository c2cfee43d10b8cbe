package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"treescope/pkg/storage"
)

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List scanned games stored locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := storage.New(stringSetting(cmd, "storage-dir", "storage.dir"))
		manifests, err := store.Manifests()
		if err != nil {
			return err
		}
		if len(manifests) == 0 {
			fmt.Println("No scanned games stored.")
			return nil
		}
		for _, m := range manifests {
			fmt.Printf("%d\t%s\t%s\t%d instances, %d scripts, %d remotes\thash %.12s\n",
				m.TargetID, m.ScannedAt.Format("2006-01-02 15:04"), m.Name,
				m.InstanceCount, m.ScriptCount, m.RemoteCount, m.TreeHash)
		}
		return nil
	},
}

var gamesDeleteCmd = &cobra.Command{
	Use:   "delete <target-id>",
	Short: "Delete all stored scan data for a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("target id must be a number: %w", err)
		}
		store := storage.New(stringSetting(cmd, "storage-dir", "storage.dir"))
		if !store.Exists(targetID) {
			fmt.Printf("No scan data found for target %d\n", targetID)
			return nil
		}
		if err := store.Delete(targetID); err != nil {
			return err
		}
		fmt.Printf("Deleted scan data for target %d\n", targetID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gamesCmd)
	gamesCmd.AddCommand(gamesDeleteCmd)
	gamesCmd.PersistentFlags().String("storage-dir", "", "Directory for persistent scan storage (default ./storage)")
}
