// Package namedpipe provides local inter-process endpoints that work the same
// on unix and Windows. On unix an endpoint is an AF_UNIX stream socket under
// /tmp; on Windows it is a named pipe under \\.\pipe\. Two processes
// rendezvous by using the same short logical name.
//
// A server listens and accepts connections one at a time:
//
//	srv, _ := namedpipe.NewServer("hello")
//	srv.Listen()
//	conn, _ := srv.Accept()
//	defer conn.Close()
//
// A client connects:
//
//	c, _ := namedpipe.NewClient("hello")
//	c.Connect(ctx)
//	defer c.Close()
//
// Endpoints only establish the channel. Reading and writing through
// Endpoint.Handle is left to higher layers.
package namedpipe
