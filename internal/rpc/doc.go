// Package rpc implements the JSON method dispatch consumed by the HTTP
// transport. A request names a tenant, a method, and a params object; the
// response is the method result or an error envelope. Errors and panics
// never escape Dispatch.
//
// Example:
//
//	svc := rpc.New(rt)
//	req, _ := rpc.ParseRequest([]byte(`{"tenant":"acme","method":"create","params":{"model":"contact","data":{"name":"Ada"}}}`))
//	result := svc.Dispatch(ctx, req)
//	body := jsonval.Encode(result)
package rpc
