// Package main implements very simple grpc client that can be used for testing errnotify grpc server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

var (
	serverAddr = flag.String("s", "localhost:9090", "The server address in the format of host:port")
	service    = flag.String("service", "", "Name of the checked service, empty means the whole server")
	timeout    = flag.Duration("t", 5*time.Second, "Request timeout")
)

func main() {
	flag.Parse()

	conn, err := grpc.Dial(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatalf("server response error: %v", err)
	}

	out, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
	if err != nil {
		log.Fatalf("couldn't marshal response: %v", err)
	}
	fmt.Println(string(out))
}
