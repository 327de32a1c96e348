// Package integrationtests runs whole flowcanvas servers, configured from
// HCL and driven over socket.io, to check behavior that spans packages:
// persistence across restarts and stores chained over the network.
package integrationtests
