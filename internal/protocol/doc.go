// Package protocol concerns itself with DNS filtering business logic: deciding, for each query,
// whether it is answered locally with a sink address or relayed to the upstream resolver, and
// synthesizing the locally built replies.
package protocol
