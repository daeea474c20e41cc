package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sigvend/sigvend-server/adminserver"
	"github.com/sigvend/sigvend-server/monerojson"
)

// supportedMethods lists every admin method the ctl can invoke.
var supportedMethods = []string{
	adminserver.MethodListProducts,
	adminserver.MethodCreateProduct,
	adminserver.MethodUpdateProduct,
	adminserver.MethodDeleteProduct,
	adminserver.MethodCreateOrder,
	adminserver.MethodListOrders,
	adminserver.MethodGetOrder,
	adminserver.MethodShipOrder,
	adminserver.MethodCancelOrder,
	adminserver.MethodListContacts,
	adminserver.MethodListMessages,
	adminserver.MethodSendMessage,
	adminserver.MethodGetWalletStatus,
	adminserver.MethodGetNodeStatus,
}

func usage() {
	appName := os.Args[0]
	fmt.Fprintf(os.Stderr, "Usage:\n  %s [OPTIONS] <method> [param=value ...]\n\n", appName)
	fmt.Fprintf(os.Stderr, "Run '%s -l' to list supported methods, '%s -h' for options.\n",
		appName, appName)
}

func listMethods() {
	methods := append([]string(nil), supportedMethods...)
	sort.Strings(methods)
	for _, method := range methods {
		fmt.Println(method)
	}
}

// buildParams converts the key=value positional arguments into the params
// object. Values that parse as JSON (numbers, booleans, arrays) keep their
// type; everything else is passed as a string.
func buildParams(args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(args))
	for _, arg := range args {
		idx := strings.Index(arg, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}
		key, raw := arg[:idx], arg[idx+1:]

		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		params[key] = value
	}
	return json.Marshal(params)
}

// sendCommand POSTs one JSON-RPC request to the admin endpoint and returns
// the raw result.
func sendCommand(cfg *config, method string, params json.RawMessage) (json.RawMessage, error) {
	request := &monerojson.Request{
		JSONRPC: monerojson.JSONRPCVersion,
		ID:      "vendctl",
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	url := "http://" + cfg.RPCServer + "/"
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(cfg.RPCUser, cfg.RPCPassword)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("authentication failure, check rpcuser and rpcpass")
	}
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s",
			httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var response monerojson.Response
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("malformed response: %v", err)
	}
	if response.Error != nil {
		return nil, response.Error
	}
	return response.Result, nil
}

func main() {
	cfg, args, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	if cfg.ListMethods {
		listMethods()
		return
	}
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	method := strings.ToLower(args[0])
	known := false
	for _, m := range supportedMethods {
		if m == method {
			known = true
			break
		}
	}
	if !known {
		fmt.Fprintf(os.Stderr, "Unknown method %q, use -l to list methods\n", method)
		os.Exit(1)
	}

	params, err := buildParams(args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	result, err := sendCommand(cfg, method, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Pretty-print the result JSON.
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(buf.String())
}
