//go:build !unix

package archive

func isCrossDevice(error) bool {
	return false
}
