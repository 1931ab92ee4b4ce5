// Command barrierscreen-hosts manages the TOFU known_hosts trust store used
// by barrierscreen: list remembered server fingerprints, or forget one to
// force a fresh trust prompt on the next connection.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/jrhodes/barrierscreen/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()

		return 1
	}

	path := filepath.Join(configDir(), "known_hosts.json")

	trust, err := session.OpenTrustStore(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "barrierscreen-hosts: %v\n", err)

		return 1
	}

	switch args[0] {
	case "list":
		listHosts(trust)

		return 0

	case "forget":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: barrierscreen-hosts forget <address>")

			return 1
		}

		if err := trust.Forget(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "barrierscreen-hosts: %v\n", err)

			return 1
		}

		fmt.Printf("forgot %s\n", args[1])

		return 0

	default:
		usage()

		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: barrierscreen-hosts list")
	fmt.Fprintln(os.Stderr, "       barrierscreen-hosts forget <address>")
}

func listHosts(trust *session.TrustStore) {
	entries := trust.Entries()

	addrs := make([]string, 0, len(entries))
	for addr := range entries {
		addrs = append(addrs, addr)
	}

	sort.Strings(addrs)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Server Address", "Fingerprint"})

	for _, addr := range addrs {
		table.Append([]string{addr, entries[addr]})
	}

	table.Render()
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}

	return filepath.Join(dir, "barrierscreen")
}
