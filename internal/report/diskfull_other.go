//go:build !unix

package report

func isDiskFull(error) bool {
	return false
}
