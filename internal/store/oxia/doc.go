// Package oxia implements the Store interface using Oxia.
//
// Oxia is a distributed metadata store with ordered range scans. This package
// maps the purge model onto it:
//
//   - a store namespace is an Oxia namespace; one client is opened per
//     namespace on first use;
//   - a collection is the key prefix "/<collection>/";
//   - a record's value is a JSON document whose "expiresAtMs" field holds
//     its expiry in Unix milliseconds.
//
// Usage:
//
//	st, err := oxia.New(ctx, oxia.Config{
//	    ServiceAddress: "localhost:6648",
//	})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	for rec, err := range st.Scan(ctx, "default", "sessions") {
//	    ...
//	}
//
// Values that are not JSON, or carry no expiry, never expire.
package oxia
