package session

import "testing/fstest"

func mapFS(yaml string) fstest.MapFS {
	return fstest.MapFS{"table.yaml": {Data: []byte(yaml)}}
}
