// s3connector manages buckets and objects on AWS S3 and S3 compatible
// storage from the command line.
package main

import "github.com/ThierryZhou/go-s3connector/cmd"

func main() {
	cmd.Main()
}
