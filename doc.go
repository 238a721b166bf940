// Package remoteval converts live script-runtime values into the remote
// debugging protocol's JSON-compatible "remote value" representation and back.
//
// Components:
//   - HandleRegistry: per-realm table of opaque handles bound to live heap
//     values, plus the sharedId namespace for DOM-like nodes.
//   - Serializer: host.Value -> remote.RemoteValue, depth-bounded, ownership-aware.
//   - Deserializer: remote.RemoteValue -> host.Value, handles take priority.
//   - Realm: owns one registry and the codec pair; RealmStorage indexes realms.
//
// Ownership:
//
//	root  the top-level heap value gets a handle (minted or reused) and stays
//	      reachable until disowned, swept or the realm closes
//	none  no handle is minted or attached
//
// Depth:
//
//	serialize({"foo": {"bar": "baz"}, "qux": "quux"}, none, 1)
//	  -> {type:object, value:[["foo",{type:object}],["qux",{type:string,value:"quux"}]]}
//
// Handles may optionally be leased through a provider.Provider (BigCache,
// Ristretto, Redis); an expired lease makes the handle unknown.
//
// Package codec moves remote values over JSON, CBOR, MessagePack or Protobuf,
// and package jsrealm binds a realm to an embedded JavaScript engine.
package remoteval
