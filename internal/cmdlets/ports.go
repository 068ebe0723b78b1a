package cmdlets

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gizmo-platform/copter/pkg/flightboard"
)

var (
	portsCmd = &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long:  portsCmdLongDocs,
		RunE:  portsCmdRun,
	}

	portsCmdLongDocs = `Lists the serial ports on this machine along with their USB identifiers.  Use this to find the values for board.vid and board.pid if the flight board is not found automatically.`
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

func portsCmdRun(c *cobra.Command, args []string) error {
	ports, err := flightboard.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\t%s:%s\t%s\n", p.Name, p.VID, p.PID, p.Product)
			continue
		}
		fmt.Println(p.Name)
	}
	return nil
}
