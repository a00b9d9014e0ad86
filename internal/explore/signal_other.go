//go:build !unix

package explore

import "os"

func signalName(*os.ProcessState) string {
	return ""
}
